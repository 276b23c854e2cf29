package repository

import (
	"cmp"
	"slices"
	"time"

	"github.com/kirychukyurii/faculty-scheduler/internal/model"
)

func sortJobs(jobs []*model.Job) {
	slices.SortFunc(jobs, func(a, b *model.Job) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func sortNodes(nodes []*model.Node) {
	slices.SortFunc(nodes, func(a, b *model.Node) int {
		return cmp.Compare(a.ID, b.ID)
	})
}

func cloneNode(n *model.Node) *model.Node {
	c := *n
	c.ReleasedStart = cloneTime(n.ReleasedStart)
	c.ReleasedEnd = cloneTime(n.ReleasedEnd)
	c.RemovedDate = cloneTime(n.RemovedDate)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
