package domain

// RequestType records where the requested asset comes from.
type RequestType string

const (
	RequestMicrosoft RequestType = "Microsoft"
	RequestExternal  RequestType = "External"
	RequestHardware  RequestType = "Hardware"
)

// RequestStatus is the lifecycle state of a request.
type RequestStatus string

const (
	RequestPending    RequestStatus = "Pending"
	RequestApproved   RequestStatus = "Approved"
	RequestRejected   RequestStatus = "Rejected"
	RequestInProgress RequestStatus = "In-Progress"
	RequestFulfilled  RequestStatus = "Fulfilled"
)

// Request is an employee's ask for a new asset.
type Request struct {
	ID               string        `json:"id"`
	Type             RequestType   `json:"type" validate:"required,oneof=Microsoft External Hardware"`
	FamilyID         string        `json:"family_id" validate:"required"`
	RequestedBy      string        `json:"requested_by" validate:"required"`
	Status           RequestStatus `json:"status"`
	RequestDate      string        `json:"request_date"`
	Justification    string        `json:"justification,omitempty"`
	LinkedTaskID     string        `json:"linked_task_id,omitempty"`
	FulfilledAssetID string        `json:"fulfilled_asset_id,omitempty"`
	Audit
}

// EffectiveStatus derives In-Progress for an approved request whose task
// exists but whose fulfillment has not been recorded.
func (r *Request) EffectiveStatus() RequestStatus {
	if r.Status == RequestApproved && r.LinkedTaskID != "" {
		return RequestInProgress
	}
	return r.Status
}

// TaskPriority orders follow-up work.
type TaskPriority string

const (
	PriorityHigh   TaskPriority = "High"
	PriorityMedium TaskPriority = "Medium"
	PriorityLow    TaskPriority = "Low"
)

// TaskStatus tracks a task's progress.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "Todo"
	TaskInProgress TaskStatus = "In-Progress"
	TaskDone       TaskStatus = "Done"
)

// Task is the internal work item created when a request is approved.
type Task struct {
	ID          string       `json:"id"`
	RequestID   string       `json:"request_id"`
	AssignedTo  string       `json:"assigned_to" validate:"required"`
	Priority    TaskPriority `json:"priority" validate:"required,oneof=High Medium Low"`
	Status      TaskStatus   `json:"status"`
	DueDate     string       `json:"due_date,omitempty" validate:"omitempty,isodate"`
	Description string       `json:"description"`
	Audit
}

// ReferenceKind names one of the admin-managed reference lists.
type ReferenceKind string

const (
	ReferenceVendors     ReferenceKind = "vendors"
	ReferenceSites       ReferenceKind = "sites"
	ReferenceDepartments ReferenceKind = "departments"
)

// Valid reports whether k is a known reference list.
func (k ReferenceKind) Valid() bool {
	switch k {
	case ReferenceVendors, ReferenceSites, ReferenceDepartments:
		return true
	}
	return false
}

// Reference is a named vendor, site or department. Other records point at
// it by name, so renames do not cascade.
type Reference struct {
	ID   string        `json:"id"`
	Kind ReferenceKind `json:"kind"`
	Name string        `json:"name" validate:"required"`
}
