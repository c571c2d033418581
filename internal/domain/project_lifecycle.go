package domain

var projectTransitions = map[ProjectStatus][]ProjectStatus{
	ProjectStatusDraft:           {ProjectStatusPendingApproval, ProjectStatusCancelled},
	ProjectStatusPendingApproval: {ProjectStatusRecruiting, ProjectStatusRejected, ProjectStatusCancelled},
	ProjectStatusRecruiting:      {ProjectStatusInProgress, ProjectStatusCancelled},
	ProjectStatusInProgress:      {ProjectStatusFulfilled, ProjectStatusCancelled},
	ProjectStatusFulfilled:       {ProjectStatusCompleted, ProjectStatusCancelled},
	ProjectStatusRejected:        {ProjectStatusPendingApproval, ProjectStatusCancelled},
	ProjectStatusCompleted:       {},
	ProjectStatusCancelled:       {},
}

// CanTransitionProject returns true when a project transition is allowed.
func CanTransitionProject(from, to ProjectStatus) bool {
	for _, candidate := range projectTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// ProjectTransitionError returns nil when from -> to is legal and an
// InvalidStateError naming both states otherwise. Same-state moves are not no-ops.
func ProjectTransitionError(op string, p Project, to ProjectStatus) error {
	if !CanTransitionProject(p.Status, to) {
		return InvalidStateError(op, "project", p.ID, string(p.Status), string(to))
	}
	return nil
}

// ContractCounts summarizes a project's contracts for progress derivation.
type ContractCounts struct {
	Active     int
	Renewed    int
	Terminated int
}

func (c ContractCounts) Total() int {
	return c.Active + c.Renewed + c.Terminated
}

// DeriveProjectProgress computes the forward-only operational status implied by
// the project's contracts. It never moves a project backwards, and it only acts
// on recruiting, in_progress and fulfilled projects.
func DeriveProjectProgress(p Project, counts ContractCounts) (ProjectStatus, int) {
	headcount := counts.Active
	status := p.Status
	switch status {
	case ProjectStatusRecruiting, ProjectStatusInProgress, ProjectStatusFulfilled:
	default:
		return status, p.CurrentHeadcount
	}

	if status == ProjectStatusRecruiting && headcount > 0 {
		status = ProjectStatusInProgress
	}
	if status == ProjectStatusInProgress && headcount >= p.RequiredHeadcount {
		status = ProjectStatusFulfilled
	}
	if status == ProjectStatusFulfilled && headcount == 0 && counts.Total() > 0 {
		status = ProjectStatusCompleted
	}
	return status, headcount
}
