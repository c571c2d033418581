// Package approvals implements the project approval workflow.
//
// States:
//   - draft -> pending_approval -> recruiting | rejected
//   - rejected -> pending_approval (resubmit)
//   - recruiting -> in_progress -> fulfilled -> completed (derived from contracts)
//   - any state except completed and cancelled -> cancelled
//
// Guards:
//   - Submitting and editing require the project's requester or the editing role.
//   - Approving and rejecting require the approver role, and the approver may
//     be neither the project's requester nor the user who opened the request.
//   - Cancelling requires the cancel role and a reason.
//
// Every transition runs in one unit of work: the project save, the approval
// request write and the audit event commit together or not at all. A project
// has at most one open approval request at any time.
package approvals
