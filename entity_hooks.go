package entityassist

import "context"

// =====================================
// Entity Hook Interfaces
// =====================================

// The builder calls these in attached and detached mode alike. They take a
// context rather than gorm's *gorm.DB, so gorm never invokes them itself.

// BeforePersistHook is called before inserting a new version
type BeforePersistHook interface {
	BeforePersist(ctx context.Context) error
}

// AfterPersistHook is called after a new version has been inserted and its
// identifier assigned
type AfterPersistHook interface {
	AfterPersist(ctx context.Context) error
}

// BeforeUpdateHook is called before updating an entity in place
type BeforeUpdateHook interface {
	BeforeUpdate(ctx context.Context) error
}

// AfterUpdateHook is called after successfully updating an entity
type AfterUpdateHook interface {
	AfterUpdate(ctx context.Context) error
}

func beforePersist(ctx context.Context, entity any) error {
	if h, ok := entity.(BeforePersistHook); ok {
		if err := h.BeforePersist(ctx); err != nil {
			return NewErrorWithCause(ErrorTypeValidation, "before persist hook failed", err)
		}
	}
	return nil
}

func afterPersist(ctx context.Context, entity any) error {
	if h, ok := entity.(AfterPersistHook); ok {
		if err := h.AfterPersist(ctx); err != nil {
			return NewErrorWithCause(ErrorTypeValidation, "after persist hook failed", err)
		}
	}
	return nil
}

func beforeUpdate(ctx context.Context, entity any) error {
	if h, ok := entity.(BeforeUpdateHook); ok {
		if err := h.BeforeUpdate(ctx); err != nil {
			return NewErrorWithCause(ErrorTypeValidation, "before update hook failed", err)
		}
	}
	return nil
}

func afterUpdate(ctx context.Context, entity any) error {
	if h, ok := entity.(AfterUpdateHook); ok {
		if err := h.AfterUpdate(ctx); err != nil {
			return NewErrorWithCause(ErrorTypeValidation, "after update hook failed", err)
		}
	}
	return nil
}
