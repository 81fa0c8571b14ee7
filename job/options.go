package job

// Options configures per-job behavior at creation time.
type Options struct {
	// Priority determines queue ordering. Defaults to PriorityNormal.
	Priority Priority

	// MaxAttempts is the attempt budget before the job fails terminally.
	MaxAttempts int

	// OwnerUserID scopes visibility of the job. Empty means unowned
	// (visible to admins only).
	OwnerUserID string

	// CorrelationID overrides the generated correlation identifier.
	CorrelationID string

	// EntityType and EntityID link the job to an external resource for
	// scoped lookup.
	EntityType string
	EntityID   string
}

// DefaultOptions returns Options with the documented defaults.
func DefaultOptions() Options {
	return Options{
		Priority:    PriorityNormal,
		MaxAttempts: 3,
	}
}

// Option is a functional option for configuring job creation.
type Option func(*Options)

// WithPriority sets the job priority.
func WithPriority(p Priority) Option {
	return func(o *Options) {
		o.Priority = p
	}
}

// WithMaxAttempts sets the attempt budget. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(o *Options) {
		if n >= 1 {
			o.MaxAttempts = n
		}
	}
}

// WithOwner sets the owning user for visibility scoping.
func WithOwner(userID string) Option {
	return func(o *Options) {
		o.OwnerUserID = userID
	}
}

// WithCorrelationID supplies a caller-chosen correlation identifier
// instead of a generated one.
func WithCorrelationID(cid string) Option {
	return func(o *Options) {
		o.CorrelationID = cid
	}
}

// WithEntity links the job to an external resource.
func WithEntity(entityType, entityID string) Option {
	return func(o *Options) {
		o.EntityType = entityType
		o.EntityID = entityID
	}
}
