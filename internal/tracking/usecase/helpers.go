package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"replytrack-backend/internal/tracking/domain"
)

// callWithTimeout runs fn under a context bounded by d
func callWithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	v, err := fn(callCtx)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		var zero T
		return zero, fmt.Errorf("%w: %v", domain.ErrTransientProvider, err)
	}
	return v, err
}

// ensureLabel returns the id of the named label, creating it when missing
func ensureLabel(ctx context.Context, provider domain.MailProvider, timeout time.Duration, name string) (domain.LabelID, error) {
	find := func() (domain.LabelID, bool, error) {
		labels, err := callWithTimeout(ctx, timeout, provider.GetLabels)
		if err != nil {
			return "", false, fmt.Errorf("list labels: %w", err)
		}
		for _, l := range labels {
			if strings.EqualFold(l.Name, name) {
				return l.ID, true, nil
			}
		}
		return "", false, nil
	}

	id, ok, err := find()
	if err != nil || ok {
		return id, err
	}

	label, createErr := callWithTimeout(ctx, timeout, func(ctx context.Context) (*domain.Label, error) {
		return provider.CreateLabel(ctx, name)
	})
	if createErr == nil {
		return label.ID, nil
	}

	// a concurrent event may have created it first
	id, ok, err = find()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("create label %q: %w", name, createErr)
	}
	return id, nil
}

// applyLabel labels a message with the named label
func applyLabel(ctx context.Context, provider domain.MailProvider, timeout time.Duration, name string, messageID domain.MessageID) error {
	labelID, err := ensureLabel(ctx, provider, timeout, name)
	if err != nil {
		return err
	}
	_, err = callWithTimeout(ctx, timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, provider.LabelMessage(ctx, messageID, labelID)
	})
	if err != nil {
		return fmt.Errorf("label message %s as %q: %w", messageID, name, err)
	}
	return nil
}

func findMessage(msgs []*domain.Message, id domain.MessageID) *domain.Message {
	for _, m := range msgs {
		if m.ID == id {
			return m
		}
	}
	return nil
}
