package tienda

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/xraph/tienda/audit"
	"github.com/xraph/tienda/fx"
	"github.com/xraph/tienda/id"
	"github.com/xraph/tienda/plan"
	"github.com/xraph/tienda/state"
)

var validate = validator.New()

// UpdateRates replaces the whole rate set. Any non-positive rate rejects the
// update. Recorded transactions keep the rate they were posted with.
func (e *Engine) UpdateRates(ctx context.Context, r fx.Rates) (fx.Rates, error) {
	if err := r.Validate(); err != nil {
		return fx.Rates{}, err
	}

	var applied fx.Rates
	err := e.apply(ctx, "update_rates", func(s *state.AppState, c *change) error {
		old := s.Rates
		r.LastUpdated = c.now
		s.Rates = r
		applied = r
		e.record(s, c, audit.EventRatesUpdated, fmt.Sprintf("VES/USD %s, VES/EUR %s, VES/USDT %s",
			r.LocalPerUSD.StringFixed(2), r.LocalPerEUR.StringFixed(2), r.LocalPerStable.StringFixed(2)), nil)

		c.emit(func(ctx context.Context) { e.plugins.EmitRatesUpdated(ctx, old, applied) })
		return nil
	})
	return applied, err
}

// UpdateBusinessInfo replaces the business profile.
func (e *Engine) UpdateBusinessInfo(ctx context.Context, info state.BusinessInfo) error {
	if err := state.ValidateBusinessInfo(info); err != nil {
		return err
	}
	return e.apply(ctx, "update_business_info", func(s *state.AppState, c *change) error {
		if info.Logo != "" {
			if err := e.requireFeature(s, c, plan.FeatureTicketLogo); err != nil {
				return err
			}
		}
		s.BusinessInfo = info
		e.record(s, c, audit.EventProfileUpdated, "Datos actualizados", nil)
		return nil
	})
}

// SelectPlan switches the subscription tier. Lowering the product limit
// below the current catalog size is allowed; only new products are refused.
func (e *Engine) SelectPlan(ctx context.Context, level plan.Level) (plan.Plan, error) {
	p, err := plan.ForLevel(level)
	if err != nil {
		return plan.Plan{}, err
	}
	err = e.apply(ctx, "select_plan", func(s *state.AppState, c *change) error {
		selected := p
		s.Plan = &selected
		e.record(s, c, audit.EventPlanSelected, fmt.Sprintf("%s ($%s/mes)", p.Name, p.PriceUSD.StringFixed(2)), nil)
		return nil
	})
	if err != nil {
		return plan.Plan{}, err
	}
	return p, nil
}

// AddSupplier registers a supplier with a fresh id.
func (e *Engine) AddSupplier(ctx context.Context, sup state.Supplier) (state.Supplier, error) {
	sup.Name = strings.TrimSpace(sup.Name)
	if err := state.ValidateSupplier(sup); err != nil {
		return state.Supplier{}, err
	}
	err := e.apply(ctx, "add_supplier", func(s *state.AppState, c *change) error {
		sup.ID = id.NewSupplierID()
		s.Suppliers = append(s.Suppliers, sup)
		e.record(s, c, audit.EventSupplierAdded, sup.Name, nil)
		return nil
	})
	if err != nil {
		return state.Supplier{}, err
	}
	return sup, nil
}

// DeleteSupplier removes a supplier. Supply records that name it are kept.
func (e *Engine) DeleteSupplier(ctx context.Context, sid id.SupplierID) error {
	return e.apply(ctx, "delete_supplier", func(s *state.AppState, c *change) error {
		for i, sup := range s.Suppliers {
			if !sid.IsNil() && sup.ID.String() == sid.String() {
				s.Suppliers = append(s.Suppliers[:i:i], s.Suppliers[i+1:]...)
				e.record(s, c, audit.EventSupplierDeleted, sup.Name, nil)
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrSupplierNotFound, sid)
	})
}

// Login opens a name-only session. Later audit entries are attributed to name.
func (e *Engine) Login(ctx context.Context, name string) error {
	session := state.Session{IsAuthenticated: true, Name: strings.TrimSpace(name)}
	if err := validate.Struct(session); err != nil {
		return ValidationError{Field: "name", Message: err.Error()}
	}
	return e.apply(ctx, "login", func(s *state.AppState, c *change) error {
		s.User = &session
		e.record(s, c, audit.EventLogin, session.Name, nil)
		return nil
	})
}

// Logout closes the session. Closing an absent session changes nothing.
func (e *Engine) Logout(ctx context.Context) error {
	return e.apply(ctx, "logout", func(s *state.AppState, c *change) error {
		if s.User == nil {
			return errUnchanged
		}
		e.record(s, c, audit.EventLogout, s.User.Name, nil)
		s.User = nil
		return nil
	})
}

// requireFeature fails with ErrFeatureDisabled when the active plan lacks key.
func (e *Engine) requireFeature(s *state.AppState, c *change, key string) error {
	res := s.ActivePlan().CheckFeature(key)
	if res.Allowed {
		return nil
	}
	c.deny(res)
	return fmt.Errorf("%w: %s", ErrFeatureDisabled, key)
}
