package conditional

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullConditional(t *testing.T) {
	c, err := FromJSON([]byte(`null`))
	require.NoError(t, err)
	assert.True(t, c.IsNull())

	_, err = c.Test(map[string]interface{}{})
	assert.Error(t, err)
}

func TestExistsClause(t *testing.T) {
	c, err := FromJSON([]byte(`{"exists": ["a", "b"]}`))
	require.NoError(t, err)

	ok, err := c.Test(map[string]interface{}{"a": map[string]interface{}{"b": 1}})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Test(map[string]interface{}{"a": map[string]interface{}{}})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEqualsClauseTrivialForFewerThanTwoChildren(t *testing.T) {
	c, err := FromJSON([]byte(`{"equals": [{"literal": 1}]}`))
	require.NoError(t, err)

	ok, err := c.Test(nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEqualsClauseComparesGetAgainstLiteral(t *testing.T) {
	c, err := FromJSON([]byte(`{"equals": [{"get": ["status"]}, {"literal": "ok"}]}`))
	require.NoError(t, err)

	ok, err := c.Test(map[string]interface{}{"status": "ok"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Test(map[string]interface{}{"status": "fail"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEqualsClauseWithThreeChildrenRequiresAllEqual(t *testing.T) {
	c, err := FromJSON([]byte(`{"equals": [{"literal": 1}, {"literal": 1}, {"literal": 2}]}`))
	require.NoError(t, err)

	ok, err := c.Test(nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetClauseReturnsNullWhenMissing(t *testing.T) {
	c, err := FromJSON([]byte(`{"equals": [{"get": ["missing"]}, {"literal": null}]}`))
	require.NoError(t, err)

	ok, err := c.Test(map[string]interface{}{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestToJSONRoundTrip(t *testing.T) {
	original := []byte(`{"exists":["a",2,"c"]}`)
	c, err := FromJSON(original)
	require.NoError(t, err)

	out, err := c.ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, string(original), string(out))
}

func TestUnsupportedClauseNameRejected(t *testing.T) {
	_, err := FromJSON([]byte(`{"bogus": []}`))
	assert.Error(t, err)
}

func TestMultiKeyClauseRejected(t *testing.T) {
	_, err := FromJSON([]byte(`{"exists": ["a"], "get": ["b"]}`))
	assert.Error(t, err)
}
