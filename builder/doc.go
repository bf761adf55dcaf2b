// Package builder configures [handle.Easy] sessions and their transfers
// through method chains.
//
// Each chain method forwards to the matching handle setter. A setter that
// fails does not stop the chain: its error is recorded and the remaining
// methods still run. The recorded errors surface together from Result:
//
//	h, err := builder.NewEasy(builder.WithLogger(logger)).
//		URL("https://example.com/data").
//		FollowLocation(true).
//		MaxRedirections(5).
//		Timeout(30 * time.Second).
//		Result()
//	if err != nil {
//		var be *builder.BuildError
//		errors.As(err, &be) // be.Errs lists every failed step
//	}
//
// A [TransferBuilder] collects callbacks for a single kind of perform and
// binds them to an existing handle without touching the handle's own
// callbacks:
//
//	tx, err := builder.NewTransfer(h).
//		WriteFunction(func(data []byte) (int, error) { return buf.Write(data) }).
//		Result()
//	err = tx.Perform(ctx)
package builder
