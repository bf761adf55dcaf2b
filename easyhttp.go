// Package easyhttp configures curl-style transfer handles through method
// chains and runs simple requests with them.
//
// The builders live in package builder; the constructors here are
// shortcuts to them:
//
//	h, err := easyhttp.NewEasyBuilder().
//		URL("https://example.com/items").
//		FollowLocation(true).
//		Result()
//
// Do performs a configured builder once, checking the status code and
// decoding a JSON response:
//
//	var items []Item
//	err := easyhttp.Do(ctx, easyhttp.NewEasyBuilder().URL(u), http.StatusOK,
//		easyhttp.WithDestination(&items))
package easyhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/adamwoolhether/easyhttp/builder"
	"github.com/adamwoolhether/easyhttp/handle"
)

// NewEasyBuilder returns a builder around a new handle.
func NewEasyBuilder(opts ...builder.Option) *builder.EasyBuilder {
	return builder.NewEasy(opts...)
}

// NewTransferBuilder returns a builder for a transfer bound to h.
func NewTransferBuilder(h *handle.Easy, opts ...builder.Option) *builder.TransferBuilder {
	return builder.NewTransfer(h, opts...)
}

// Do finalizes b, performs the transfer and closes the handle. A response
// code other than expCode is reported as an [*UnexpectedStatusError]
// carrying the body. b must not be used afterwards.
func Do(ctx context.Context, b *builder.EasyBuilder, expCode int, opts ...DoOption) error {
	var body bytes.Buffer
	h, err := b.WriteFunction(func(data []byte) (int, error) {
		return body.Write(data)
	}).Result()
	if err != nil {
		return err
	}

	settings := doOpts{logger: slog.Default()}
	defer func() {
		if err := h.Close(); err != nil {
			settings.logger.Error("failed to close handle", "error", err)
		}
	}()

	for _, opt := range opts {
		if err := opt(&settings); err != nil {
			return err
		}
	}

	if err := h.Perform(ctx); err != nil {
		return fmt.Errorf("exec perform: %w", err)
	}

	if code := h.ResponseCode(); code != expCode {
		statusErr := &UnexpectedStatusError{
			StatusCode: code,
			Body:       body.String(),
			Err:        ErrUnexpectedStatusCode,
		}
		if code == http.StatusUnauthorized {
			statusErr.Err = fmt.Errorf("%w: %w", ErrAuthenticationFailed, ErrUnexpectedStatusCode)
		}
		return statusErr
	}

	if settings.responseBody != nil {
		d := json.NewDecoder(&body)

		if settings.useJSONNum {
			d.UseNumber()
		}

		if err := d.Decode(settings.responseBody); err != nil {
			return fmt.Errorf("failed to decode body: %w", err)
		}
	}

	return nil
}
