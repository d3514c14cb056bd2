package coordinator

import (
	"time"

	"github.com/taoyao-code/healthportal/internal/health"
	"github.com/taoyao-code/healthportal/internal/result"
)

// Index 实体与检查项的只读结构索引（构建后结构不再变化）
type Index struct {
	entities  []*Entity
	tabs      []string
	byTab     map[string][]*Entity
	byID      map[string]*Entity
	checks    []*HealthCheck
	checkByID map[string]*HealthCheck
	byWorker  map[string][]*HealthCheck
}

func newIndex() *Index {
	return &Index{
		byTab:     make(map[string][]*Entity),
		byID:      make(map[string]*Entity),
		checkByID: make(map[string]*HealthCheck),
		byWorker:  make(map[string][]*HealthCheck),
	}
}

func (x *Index) add(e *Entity) {
	if _, ok := x.byTab[e.Tab]; !ok {
		x.tabs = append(x.tabs, e.Tab)
	}
	x.byTab[e.Tab] = append(x.byTab[e.Tab], e)
	x.byID[e.ID] = e
	x.entities = append(x.entities, e)
	for _, c := range e.Checks {
		x.checks = append(x.checks, c)
		x.checkByID[c.ID] = c
		x.byWorker[c.Worker] = append(x.byWorker[c.Worker], c)
	}
}

// Len 实体数与检查项数
func (x *Index) Len() (entities, checks int) { return len(x.entities), len(x.checks) }

// WorkerNames 被检查项引用的远程 worker（按首次出现顺序）
func (x *Index) WorkerNames() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range x.checks {
		if c.Worker != "" && !seen[c.Worker] {
			seen[c.Worker] = true
			out = append(out, c.Worker)
		}
	}
	return out
}

// CheckView 检查项快照
type CheckView struct {
	ID          string        `json:"id"`
	EntityID    string        `json:"entity_id"`
	EntityName  string        `json:"entity_name"`
	Cls         string        `json:"cls"`
	Label       string        `json:"label"`
	Description string        `json:"description,omitempty"`
	Worker      string        `json:"worker,omitempty"`
	Interval    float64       `json:"interval_seconds"`
	Healthy     health.State  `json:"healthy"`
	Result      result.Result `json:"result"`
	LastStart   *time.Time    `json:"last_start,omitempty"`
	LastFinish  *time.Time    `json:"last_finish,omitempty"`
}

// EntityView 实体快照
type EntityView struct {
	ID          string       `json:"id"`
	Kind        string       `json:"kind"`
	Name        string       `json:"name"`
	Tab         string       `json:"tab"`
	Description string       `json:"description,omitempty"`
	Worker      string       `json:"worker,omitempty"`
	URL         string       `json:"url,omitempty"`
	Healthy     health.State `json:"healthy"`
	Checks      []CheckView  `json:"healthchecks"`
}

func viewCheck(c *HealthCheck) CheckView {
	v := CheckView{
		ID:          c.ID,
		EntityID:    c.Entity.ID,
		EntityName:  c.Entity.Name,
		Cls:         c.Cls,
		Label:       c.Label,
		Description: c.Description,
		Worker:      c.Worker,
		Interval:    c.Interval.Seconds(),
		Healthy:     c.Result.State(),
		Result:      c.Result,
	}
	if !c.LastStart.IsZero() {
		t := c.LastStart
		v.LastStart = &t
	}
	if !c.LastFinish.IsZero() {
		t := c.LastFinish
		v.LastFinish = &t
	}
	return v
}

func viewEntity(e *Entity) EntityView {
	v := EntityView{
		ID:          e.ID,
		Kind:        e.Kind,
		Name:        e.Name,
		Tab:         e.Tab,
		Description: e.Description,
		Worker:      e.Worker,
		URL:         e.URL,
		Healthy:     e.healthy,
		Checks:      make([]CheckView, 0, len(e.Checks)),
	}
	for _, c := range e.Checks {
		v.Checks = append(v.Checks, viewCheck(c))
	}
	return v
}
