// Package cascade removes and restores what belongs to a service group.
//
// Storage backends call it from their service group delete while holding
// the service group write lock. The dependent managers are visited in lock
// order: redirects, service information, business cards.
package cascade

import (
	"context"
	"errors"
	"fmt"

	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

// State is what a service group delete removes besides the group itself
type State struct {
	Redirects []*smp.Redirect
	Infos     []*smp.ServiceInformation
	Card      *smp.BusinessCard
}

// Capture reads the dependents of sg. deps may be nil, as may each of its managers.
func Capture(ctx context.Context, deps smp.Dependents, sg *smp.ServiceGroup) (*State, error) {
	state := &State{}
	if deps == nil {
		return state, nil
	}

	var err error
	if rm := deps.RedirectManager(); rm != nil {
		if state.Redirects, err = rm.AllOfServiceGroup(ctx, sg); err != nil {
			return nil, err
		}
	}
	if sim := deps.ServiceInformationManager(); sim != nil {
		if state.Infos, err = sim.AllOfServiceGroup(ctx, sg); err != nil {
			return nil, err
		}
	}
	if bcm := deps.BusinessCardManager(); bcm != nil {
		state.Card, err = bcm.OfServiceGroup(ctx, sg)
		if err != nil && !errors.Is(err, smp.ErrNotFound) {
			return nil, err
		}
	}
	return state, nil
}

// Delete removes all redirects, service information and the business card of sg
func Delete(ctx context.Context, deps smp.Dependents, sg *smp.ServiceGroup) error {
	if deps == nil {
		return nil
	}
	if rm := deps.RedirectManager(); rm != nil {
		if _, err := rm.DeleteAllOfServiceGroup(ctx, sg); err != nil {
			return fmt.Errorf("failed to delete redirects: %w", err)
		}
	}
	if sim := deps.ServiceInformationManager(); sim != nil {
		if _, err := sim.DeleteAllOfServiceGroup(ctx, sg); err != nil {
			return fmt.Errorf("failed to delete service information: %w", err)
		}
	}
	if bcm := deps.BusinessCardManager(); bcm != nil {
		if _, err := bcm.DeleteAllOfServiceGroup(ctx, sg); err != nil {
			return fmt.Errorf("failed to delete business card: %w", err)
		}
	}
	return nil
}

// Restore puts back the redirects, service information and business card in
// state, in that order. Service information is merged. Entries that are
// still present are left as they are.
func Restore(ctx context.Context, deps smp.Dependents, sg *smp.ServiceGroup, state *State) error {
	if deps == nil || state == nil {
		return nil
	}

	var errs []error
	if len(state.Redirects) > 0 {
		rm := deps.RedirectManager()
		for _, r := range state.Redirects {
			if _, err := rm.OfServiceGroupAndDocumentType(ctx, sg, r.DocumentTypeID); !errors.Is(err, smp.ErrNotFound) {
				continue
			}
			if _, err := rm.CreateOrUpdate(ctx, sg, r.DocumentTypeID, r.TargetHref, r.SubjectUniqueID, r.Certificate, r.Extension); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(state.Infos) > 0 {
		sim := deps.ServiceInformationManager()
		for _, si := range state.Infos {
			if _, err := sim.OfServiceGroupAndDocumentType(ctx, sg, si.DocumentTypeID); !errors.Is(err, smp.ErrNotFound) {
				continue
			}
			if err := sim.Merge(ctx, si); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if state.Card != nil {
		bcm := deps.BusinessCardManager()
		if _, err := bcm.OfServiceGroup(ctx, sg); errors.Is(err, smp.ErrNotFound) {
			if _, err := bcm.CreateOrUpdate(ctx, sg, state.Card.Entities); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
