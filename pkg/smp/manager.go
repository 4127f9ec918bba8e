package smp

import (
	"context"
	"crypto/x509"

	"github.com/PiccoloProcione/supersmp/pkg/extension"
	"github.com/PiccoloProcione/supersmp/pkg/identifier"
)

// RegistrationHook keeps the SML directory informed about the participants
// hosted by this SMP. Implementations must be safe for concurrent use and
// should bound the duration of each call.
//
// The undo methods are compensating actions. They are called only after the
// paired action succeeded and the local write failed afterwards.
type RegistrationHook interface {
	CreateServiceGroup(ctx context.Context, pid identifier.ParticipantID) error
	UndoCreateServiceGroup(ctx context.Context, pid identifier.ParticipantID) error
	DeleteServiceGroup(ctx context.Context, pid identifier.ParticipantID) error
	UndoDeleteServiceGroup(ctx context.Context, pid identifier.ParticipantID) error
}

// ServiceGroupCallback is notified after service group changes were committed.
type ServiceGroupCallback interface {
	OnServiceGroupCreated(ctx context.Context, sg *ServiceGroup)
	OnServiceGroupUpdated(ctx context.Context, sg *ServiceGroup)
	OnServiceGroupDeleted(ctx context.Context, pid identifier.ParticipantID)
}

// ServiceGroupManager owns the participant to owner mapping.
type ServiceGroupManager interface {
	// Create registers pid in the directory, then stores the new group.
	// Returns ErrDuplicateID if the participant already has a group.
	Create(ctx context.Context, ownerID string, pid identifier.ParticipantID, ext extension.Extension) (*ServiceGroup, error)
	// Update changes owner and extension. An unknown ID is Unchanged, not an error.
	Update(ctx context.Context, id, ownerID string, ext extension.Extension) (Change, error)
	// Delete unregisters pid from the directory, then removes the group and
	// all of its redirects, service information and business card.
	Delete(ctx context.Context, pid identifier.ParticipantID) (Change, error)

	Get(ctx context.Context, pid identifier.ParticipantID) (*ServiceGroup, error)
	GetByID(ctx context.Context, id string) (*ServiceGroup, error)
	All(ctx context.Context) ([]*ServiceGroup, error)
	AllOfOwner(ctx context.Context, ownerID string) ([]*ServiceGroup, error)
	CountOfOwner(ctx context.Context, ownerID string) (int, error)
	Contains(ctx context.Context, pid identifier.ParticipantID) (bool, error)
	Count(ctx context.Context) (int, error)

	AddCallback(cb ServiceGroupCallback)
}

// RedirectManager owns redirects, keyed by (service group, document type).
type RedirectManager interface {
	// CreateOrUpdate creates the redirect or replaces the existing one for the key
	CreateOrUpdate(ctx context.Context, sg *ServiceGroup, docType identifier.DocumentTypeID, targetHref, subjectUniqueID string, cert *x509.Certificate, ext extension.Extension) (*Redirect, error)
	Delete(ctx context.Context, r *Redirect) (Change, error)
	DeleteAllOfServiceGroup(ctx context.Context, sg *ServiceGroup) (Change, error)

	OfServiceGroupAndDocumentType(ctx context.Context, sg *ServiceGroup, docType identifier.DocumentTypeID) (*Redirect, error)
	AllOfServiceGroup(ctx context.Context, sg *ServiceGroup) ([]*Redirect, error)
	All(ctx context.Context) ([]*Redirect, error)
	Count(ctx context.Context) (int, error)
}

// ServiceInformationManager owns service information, keyed by (service group, document type).
type ServiceInformationManager interface {
	// Merge replaces the service information for its key, or inserts it.
	// The process list is replaced as a whole.
	Merge(ctx context.Context, si *ServiceInformation) error
	// Find returns the service information only if it has a process with the
	// given identifier that has an endpoint for the transport profile.
	Find(ctx context.Context, sg *ServiceGroup, docType identifier.DocumentTypeID, processID identifier.ProcessID, transportProfile string) (*ServiceInformation, error)
	Delete(ctx context.Context, si *ServiceInformation) (Change, error)
	// DeleteAllOfServiceGroup is Unchanged for a group without entries
	DeleteAllOfServiceGroup(ctx context.Context, sg *ServiceGroup) (Change, error)

	OfServiceGroupAndDocumentType(ctx context.Context, sg *ServiceGroup, docType identifier.DocumentTypeID) (*ServiceInformation, error)
	AllOfServiceGroup(ctx context.Context, sg *ServiceGroup) ([]*ServiceInformation, error)
	All(ctx context.Context) ([]*ServiceInformation, error)
	Count(ctx context.Context) (int, error)
	DocumentTypesOfServiceGroup(ctx context.Context, sg *ServiceGroup) ([]identifier.DocumentTypeID, error)
	TotalEndpointCount(ctx context.Context, sg *ServiceGroup) (int, error)
	ContainsAnyEndpointWithTransportProfile(ctx context.Context, transportProfile string) (bool, error)
}

// BusinessCardManager owns business cards, one per service group.
type BusinessCardManager interface {
	CreateOrUpdate(ctx context.Context, sg *ServiceGroup, entities []BusinessEntity) (*BusinessCard, error)
	Delete(ctx context.Context, bc *BusinessCard) (Change, error)
	DeleteAllOfServiceGroup(ctx context.Context, sg *ServiceGroup) (Change, error)

	OfServiceGroup(ctx context.Context, sg *ServiceGroup) (*BusinessCard, error)
	All(ctx context.Context) ([]*BusinessCard, error)
	Count(ctx context.Context) (int, error)
}

// Dependents gives the service group manager access to the managers it
// cascades deletes to. It is resolved lazily, at delete time, because the
// service group manager is constructed first.
type Dependents interface {
	RedirectManager() RedirectManager
	ServiceInformationManager() ServiceInformationManager
	BusinessCardManager() BusinessCardManager
}

// ManagerProvider builds the managers of one storage backend.
type ManagerProvider interface {
	// Backend names the storage backend, e.g. "xml" or "mongodb"
	Backend() string
	NewServiceGroupManager(hook RegistrationHook, deps Dependents) (ServiceGroupManager, error)
	NewRedirectManager() (RedirectManager, error)
	NewServiceInformationManager() (ServiceInformationManager, error)
	NewBusinessCardManager() (BusinessCardManager, error)
	// Close flushes and releases the backend
	Close(ctx context.Context) error
}
