package sim

import "fmt"

// ServerPool is the fixed set of interchangeable server instances of one stage.
// Its size is set at construction and never changes during a run.
type ServerPool struct {
	stage   StageKind
	servers []*StageProcess
}

// newServerPool creates a pool of size instances using newServer for each index.
// Panics if size < 1.
func newServerPool(stage StageKind, size int, newServer func(idx int) *StageProcess) *ServerPool {
	if size < 1 {
		panic(fmt.Sprintf("ServerPool %s: size must be >= 1, got %d", stage, size))
	}
	servers := make([]*StageProcess, size)
	for i := range servers {
		servers[i] = newServer(i)
	}
	return &ServerPool{stage: stage, servers: servers}
}

// Stage returns the stage served by the pool.
func (p *ServerPool) Stage() StageKind {
	return p.stage
}

// Size returns the number of server instances.
func (p *ServerPool) Size() int {
	return len(p.servers)
}

// Server returns the instance at idx.
func (p *ServerPool) Server(idx int) *StageProcess {
	return p.servers[idx]
}

// Servers returns all instances in index order.
func (p *ServerPool) Servers() []*StageProcess {
	return p.servers
}

// Snapshots captures the occupancy and queue length of every instance.
func (p *ServerPool) Snapshots() []InstanceSnapshot {
	snaps := make([]InstanceSnapshot, len(p.servers))
	for i, s := range p.servers {
		snaps[i] = InstanceSnapshot{
			Index:    i,
			Occupied: s.queue.Occupied(),
			QueueLen: s.queue.Len(),
		}
	}
	return snaps
}

// Dispatch chooses the instance for the next arrival (see Dispatch).
func (p *ServerPool) Dispatch() DispatchDecision {
	return Dispatch(p.Snapshots())
}

// Queued returns the number of passengers waiting across all instances.
func (p *ServerPool) Queued() int {
	total := 0
	for _, s := range p.servers {
		total += s.queue.Len()
	}
	return total
}

// InService returns the number of passengers currently being served.
func (p *ServerPool) InService() int {
	total := 0
	for _, s := range p.servers {
		if s.InService() != nil {
			total++
		}
	}
	return total
}
