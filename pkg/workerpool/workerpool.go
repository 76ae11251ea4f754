// Package workerpool implements spec §4.11's three fixed thread pools —
// search, processing, indexing — each draining one queuegroup.Group and
// dispatching the popped task against a leased collection.
//
// Grounded on cuemby-warren's pkg/scheduler loop shape: a `Start`/`Stop`
// pair, a background goroutine per worker, and a `stopCh` checked each
// iteration, generalised from one ticker-driven scheduling loop to N
// goroutines each blocking on a queue group's condition variable instead
// of a ticker. Unlike the teacher's scheduler, stopping a pool here is
// driven by the queue group itself closing (queuegroup.Group.Close) and
// pop_any/pop_from/assign_handler returning "finished" — no separate
// stopCh is needed, since the group's closed state already carries that
// signal to every blocked popper.
package workerpool

import (
	"time"

	"github.com/cuemby/restpose/pkg/checkpoint"
	"github.com/cuemby/restpose/pkg/collection"
	"github.com/cuemby/restpose/pkg/log"
	"github.com/cuemby/restpose/pkg/metrics"
	"github.com/cuemby/restpose/pkg/queuegroup"
	"github.com/cuemby/restpose/pkg/resulthandle"
	"github.com/cuemby/restpose/pkg/task"
)

// ReadOnlyJob is what the search queue group carries: a read-only task
// plus the context it needs (which collection, if any, and where to write
// checkpoint errors and its response).
type ReadOnlyJob struct {
	Task        task.ReadOnlyTask
	CollName    string // empty for tasks with no collection (status, list)
	Checkpoints *checkpoint.Registry
	Result      *resulthandle.Handle
}

// ProcessingJob is what the processing queue group carries.
type ProcessingJob struct {
	Task        task.ProcessingTask
	CollName    string
	DocID       string
	Checkpoints *checkpoint.Registry
}

// IndexingJob is what the indexing queue group carries.
type IndexingJob struct {
	Task        task.IndexingTask
	DocID       string
	Checkpoints *checkpoint.Registry
}

func postPerform(t interface{}) {
	if pp, ok := t.(task.PostPerformer); ok {
		pp.PostPerform()
	}
}

// SearchPool runs n worker goroutines draining group via pop_any,
// dispatching each ReadOnlyJob against a read-only collection lease
// (omitted when the job carries no collection name). Workers never hold a
// writer lease, so they may switch collections freely between tasks.
func SearchPool(n int, group *queuegroup.Group, pool *collection.Pool) *Pool {
	p := newPool("search")
	for i := 0; i < n; i++ {
		p.spawn(func() {
			runSearchWorker(group, pool)
		})
	}
	return p
}

func runSearchWorker(group *queuegroup.Group, pool *collection.Pool) {
	var lastKey string
	var completed interface{}
	for {
		res := group.PopAny(lastKey, completed)
		if res.Finished {
			return
		}
		lastKey = res.Key
		completed = res.Task

		job := res.Task.(*ReadOnlyJob)
		metrics.QueueInProgress.WithLabelValues("search", job.CollName).Inc()
		runReadOnlyJob(job, pool)
		metrics.QueueInProgress.WithLabelValues("search", job.CollName).Dec()
		postPerform(job.Task)
	}
}

func runReadOnlyJob(job *ReadOnlyJob, pool *collection.Pool) {
	var coll *collection.Collection
	if job.CollName != "" {
		var err error
		coll, err = pool.GetReadonly(job.CollName)
		if err != nil {
			task.Run(job.Checkpoints, "", "", job.Result, func() error { return err })
			metrics.TasksProcessedTotal.WithLabelValues("search", "error").Inc()
			return
		}
		defer pool.Release(job.CollName)
	}

	outcome := "ok"
	task.Run(job.Checkpoints, "", "", job.Result, func() error {
		return job.Task.Perform(coll, job.Result)
	})
	if job.Result != nil && job.Result.Response().Status >= 400 {
		outcome = "error"
	}
	metrics.TasksProcessedTotal.WithLabelValues("search", outcome).Inc()
}

// ProcessingPool runs n worker goroutines draining group via pop_any,
// dispatching each ProcessingJob against a read-only collection lease plus
// enq, the task manager's back-pressure edge.
func ProcessingPool(n int, group *queuegroup.Group, pool *collection.Pool, enq task.Enqueuer) *Pool {
	p := newPool("processing")
	for i := 0; i < n; i++ {
		p.spawn(func() {
			runProcessingWorker(group, pool, enq)
		})
	}
	return p
}

func runProcessingWorker(group *queuegroup.Group, pool *collection.Pool, enq task.Enqueuer) {
	var lastKey string
	var completed interface{}
	for {
		res := group.PopAny(lastKey, completed)
		if res.Finished {
			return
		}
		lastKey = res.Key
		completed = res.Task

		job := res.Task.(*ProcessingJob)
		metrics.QueueInProgress.WithLabelValues("processing", job.CollName).Inc()
		runProcessingJob(job, pool, enq)
		metrics.QueueInProgress.WithLabelValues("processing", job.CollName).Dec()
		postPerform(job.Task)
	}
}

func runProcessingJob(job *ProcessingJob, pool *collection.Pool, enq task.Enqueuer) {
	coll, err := pool.GetReadonly(job.CollName)
	if err != nil {
		task.Run(job.Checkpoints, "", job.DocID, nil, func() error { return err })
		metrics.TasksProcessedTotal.WithLabelValues("processing", "error").Inc()
		return
	}
	defer pool.Release(job.CollName)

	outcome := "ok"
	task.Run(job.Checkpoints, "", job.DocID, nil, func() error {
		if e := job.Task.Perform(coll, enq); e != nil {
			outcome = "error"
			return e
		}
		return nil
	})
	metrics.TasksProcessedTotal.WithLabelValues("processing", outcome).Inc()
}

// IndexingPool runs n worker goroutines, each claiming one collection at a
// time via assign_handler, opening it writable, and draining its key with
// pop_from(key, now+idleCommitTimeout) until the idle timer fires (commit,
// release, re-assign) or the group closes (commit, release, exit).
func IndexingPool(n int, group *queuegroup.Group, pool *collection.Pool, idleCommitTimeout time.Duration) *Pool {
	p := newPool("indexing")
	for i := 0; i < n; i++ {
		p.spawn(func() {
			runIndexingWorker(group, pool, idleCommitTimeout)
		})
	}
	return p
}

func runIndexingWorker(group *queuegroup.Group, pool *collection.Pool, idleCommitTimeout time.Duration) {
	for {
		key, ok := group.AssignHandler()
		if !ok {
			return
		}
		drainAssignedKey(group, pool, key, idleCommitTimeout)
	}
}

func drainAssignedKey(group *queuegroup.Group, pool *collection.Pool, key string, idleCommitTimeout time.Duration) {
	coll, err := pool.GetWritable(key)
	if err != nil {
		log.Errorf("indexing worker failed to open collection", err)
		group.UnassignHandler(key)
		return
	}
	commitAndRelease := func() {
		timer := metrics.NewTimer()
		cErr := coll.Commit()
		timer.ObserveDuration(metrics.CommitLatency)
		if cErr != nil {
			log.Errorf("indexing worker commit failed", cErr)
		}
		pool.ReleaseWritable(key)
	}

	var completedKey string
	var completed interface{}
	for {
		deadline := time.Now().Add(idleCommitTimeout)
		res := group.PopFrom(key, deadline, completedKey, completed)
		if res.Finished {
			commitAndRelease()
			group.UnassignHandler(key)
			return
		}
		if res.Task == nil {
			// Idle timeout: commit, release this collection, and go back
			// to assign_handler for whatever else needs a writer.
			commitAndRelease()
			group.UnassignHandler(key)
			return
		}

		job := res.Task.(*IndexingJob)
		metrics.QueueInProgress.WithLabelValues("indexing", key).Inc()
		runIndexingJob(job, coll)
		metrics.QueueInProgress.WithLabelValues("indexing", key).Dec()
		postPerform(job.Task)

		completedKey = key
		completed = res.Task
	}
}

func runIndexingJob(job *IndexingJob, coll *collection.Collection) {
	outcome := "ok"
	task.Run(job.Checkpoints, "", job.DocID, nil, func() error {
		if e := job.Task.Perform(coll); e != nil {
			outcome = "error"
			return e
		}
		return nil
	})
	metrics.TasksProcessedTotal.WithLabelValues("indexing", outcome).Inc()
	if outcome == "ok" {
		if _, ok := job.Task.(*task.CheckpointReachedTask); ok {
			metrics.CheckpointsReachedTotal.Inc()
		}
	}
}
