package proctrack

// Step identifies one job step whose processes are tracked together.
// The agent fills it from the scheduler's launch message.
type Step struct {
	// JobID and StepID name the step within the cluster.
	JobID  uint32
	StepID uint32

	// HetJobID is the leading job id of a heterogeneous job, 0 when
	// the step is not part of one.
	HetJobID uint32

	// UID owns the job container.
	UID uint32

	// Forked marks steps whose launcher already forked inside the
	// container, so tracking needs no holder thread and no attach.
	Forked bool

	// ContainerID is the kernel container bound to the step, 0 until
	// Create succeeds.
	ContainerID uint64
}

// AppID derives the application id attached processes are tagged
// with. Steps of a heterogeneous job carry its leading job id so they
// aggregate under one application.
func (s *Step) AppID() uint64 {
	job := s.JobID
	if s.HetJobID != 0 {
		job = s.HetJobID
	}
	return uint64(s.StepID)<<32 + uint64(job)
}
