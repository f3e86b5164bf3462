package vlogdb

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vlogdb/model"
)

const (
	referencePrefix = "references/"
	backLinkSuffix  = "/reference"
)

func referenceKey(id string) string { return referencePrefix + id }

func backLinkKey(key string) string { return key + backLinkSuffix }

// addToReference appends key to the member list of group id and writes the
// back-link from key to id.
//
// The member list is an ordinary list record. The first member creates it;
// later members are written as continuation records and chained with a
// pointer, so existing bytes are never rewritten. Updates are serialized per
// table; tables in other processes sharing the index store are not
// coordinated and may lose members.
func (t *Table) addToReference(ctx context.Context, key, id string) error {
	t.refMu.Lock()
	defer t.refMu.Unlock()

	group := referenceKey(id)
	exists, err := t.store.Exists(ctx, t.indexKey(group))
	if err != nil {
		return translateError(err)
	}

	member := model.Strings(key)
	if !exists {
		if _, err := t.set(ctx, group, member); err != nil {
			return err
		}
	} else {
		ptr := newPointerKey(group)
		if _, err := t.set(ctx, ptr, member); err != nil {
			return err
		}
		if err := t.addPointer(ctx, group, ptr); err != nil {
			return err
		}
	}

	_, err = t.set(ctx, backLinkKey(key), model.String(id))
	return err
}

// GetWithReference returns the values of every member of group id in
// insertion order. An unknown group yields an empty result.
//
// Members are fetched concurrently. A member whose record is missing fails
// the call with *KeyNotFoundError.
func (t *Table) GetWithReference(ctx context.Context, id string) ([]model.Value, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	members, err := t.referenceMembers(ctx, id)
	if err != nil || len(members) == 0 {
		return []model.Value{}, err
	}

	out := make([]model.Value, len(members))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.referenceConcurrency)
	for i, key := range members {
		g.Go(func() error {
			v, ok, err := t.get(gctx, key)
			if err != nil {
				return err
			}
			if !ok {
				return &KeyNotFoundError{Key: key}
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReferenceMembers returns the member keys of group id in insertion order.
func (t *Table) ReferenceMembers(ctx context.Context, id string) ([]string, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	return t.referenceMembers(ctx, id)
}

func (t *Table) referenceMembers(ctx context.Context, id string) ([]string, error) {
	v, ok, err := t.get(ctx, referenceKey(id))
	if err != nil || !ok {
		return nil, err
	}
	members := make([]string, len(v.L))
	for i, m := range v.L {
		s, ok := m.AsString()
		if !ok {
			return nil, fmt.Errorf("%w: reference %q holds %s member", ErrCorruptRecord, id, m.Kind)
		}
		members[i] = s
	}
	return members, nil
}

// GetReference returns the group id key was added to.
func (t *Table) GetReference(ctx context.Context, key string) (string, bool, error) {
	if err := t.checkOpen(); err != nil {
		return "", false, err
	}
	v, ok, err := t.get(ctx, backLinkKey(key))
	if err != nil || !ok {
		return "", false, err
	}
	id, isString := v.AsString()
	if !isString {
		return "", false, fmt.Errorf("%w: back-link of %q holds %s", ErrCorruptRecord, key, v.Kind)
	}
	return id, true, nil
}
