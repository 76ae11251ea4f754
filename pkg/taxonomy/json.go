package taxonomy

import "encoding/json"

// ToJSON renders the taxonomy as an object mapping category name to its
// array of direct parent names, per spec §4.5.
func (t *Taxonomy) ToJSON() ([]byte, error) {
	out := make(map[string][]string, len(t.categories))
	for name, cat := range t.categories {
		parents := keys(cat.Parents)
		if parents == nil {
			parents = []string{}
		}
		out[name] = parents
	}
	return json.Marshal(out)
}

// FromJSON rebuilds a taxonomy from its ToJSON form. Closures are always
// recomputed from the parent edges; nothing is trusted from the input
// beyond the direct-parent relationships.
func FromJSON(name string, data []byte) (*Taxonomy, error) {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	t := New(name)
	modified := NewModifiedSet()
	for cat := range raw {
		t.Add(cat, modified)
	}
	for cat, parents := range raw {
		for _, p := range parents {
			// Input order may list a child before its parent appears as a
			// key; AddParent tolerates that since Add is idempotent.
			if err := t.AddParent(cat, p, modified); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}
