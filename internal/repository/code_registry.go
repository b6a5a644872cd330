package repository

import (
	"context"
	"errors"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/multierr"
)

const (
	maxAllocateAttempts = 5
	maxRebindAttempts   = 3
)

var ErrCodeSpaceExhausted = errors.New("failed to allocate a free short code")

// CodeRegistry owns the code -> record id bijection.
type CodeRegistry interface {
	// Allocate returns requested when it is free, or a fresh random code.
	// The check is best-effort; Register is the only atomic chokepoint.
	Allocate(ctx context.Context, requested string) (string, error)
	Register(ctx context.Context, code, recordID string) error
	Rebind(ctx context.Context, oldCode, newCode, recordID string) error
	Resolve(ctx context.Context, code string) (string, error)
	Unbind(ctx context.Context, code, recordID string) error
}

type codeRegistry struct {
	store      KeyValueStore
	codeLength int
}

func NewCodeRegistry(store KeyValueStore, codeLength int) CodeRegistry {
	return &codeRegistry{store: store, codeLength: codeLength}
}

func (r *codeRegistry) Allocate(ctx context.Context, requested string) (string, error) {
	if requested != "" {
		exists, err := r.store.Exists(ctx, codeKey(requested))
		if err != nil {
			return "", err
		}
		if exists {
			return "", ErrCodeConflict
		}
		return requested, nil
	}

	for i := 0; i < maxAllocateAttempts; i++ {
		code, err := gonanoid.New(r.codeLength)
		if err != nil {
			return "", fmt.Errorf("failed to generate short code: %w", err)
		}

		exists, err := r.store.Exists(ctx, codeKey(code))
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}

	return "", ErrCodeSpaceExhausted
}

func (r *codeRegistry) Register(ctx context.Context, code, recordID string) error {
	ok, err := r.store.SetNX(ctx, codeKey(code), recordID, 0)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCodeConflict
	}
	return nil
}

func (r *codeRegistry) Rebind(ctx context.Context, oldCode, newCode, recordID string) error {
	if oldCode == newCode {
		return nil
	}

	bound, err := r.bindOrOwn(ctx, newCode, recordID)
	if err != nil {
		return err
	}

	// Старый код снимается, только если он всё ещё указывает на эту запись
	if _, err := r.store.DelIfEquals(ctx, codeKey(oldCode), recordID); err != nil {
		err = fmt.Errorf("old code %q not released: %w", oldCode, err)
		if bound {
			// Новый код занят этим вызовом, отпускаем его обратно
			_, undoErr := r.store.DelIfEquals(ctx, codeKey(newCode), recordID)
			err = multierr.Append(err, undoErr)
		}
		return err
	}
	return nil
}

// bindOrOwn занимает code за recordID. bound=false, если код уже указывал на эту запись.
func (r *codeRegistry) bindOrOwn(ctx context.Context, code, recordID string) (bool, error) {
	for i := 0; i < maxRebindAttempts; i++ {
		ok, err := r.store.SetNX(ctx, codeKey(code), recordID, 0)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}

		owner, err := r.store.Get(ctx, codeKey(code))
		switch {
		case errors.Is(err, ErrKeyMissing):
			// Код освободили между SetNX и Get, пробуем ещё раз
			continue
		case err != nil:
			return false, err
		case owner != recordID:
			return false, ErrCodeConflict
		default:
			return false, nil
		}
	}
	return false, ErrCodeConflict
}

func (r *codeRegistry) Resolve(ctx context.Context, code string) (string, error) {
	id, err := r.store.Get(ctx, codeKey(code))
	if err != nil {
		if errors.Is(err, ErrKeyMissing) {
			return "", ErrNotFound
		}
		return "", err
	}
	return id, nil
}

func (r *codeRegistry) Unbind(ctx context.Context, code, recordID string) error {
	_, err := r.store.DelIfEquals(ctx, codeKey(code), recordID)
	return err
}
