// Package textsearch is an embeddable text-indexing session layer.
//
// A caller describes a document shape with a JSON mapping, opens or
// creates a durable on-disk index for it, mutates the index
// transactionally and reads it three ways: free-text search, exact-match
// find by the identifier field, and metric aggregation.
//
// # Usage
//
//	s, err := textsearch.CreateIndex(ctx, "idx1",
//	    []byte(`{"properties":{"data":{"type":"text","text":true,"stored":true}}}`))
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	err = s.Add(ctx, []byte(`{"data":"hello world"}`), false)
//	out, err := s.Search(ctx, "hello")
//	// out.Docs[0].Data == `{"data":"hello world"}`
//
// # Transactions
//
// Add with skipCommit=true stages documents in the session's single
// writer; Commit makes them durable and visible, Rollback discards them.
// Closing a session rolls back anything still staged.
//
// # Thread Safety
//
// A Session is safe for concurrent use. Mutations are serialized; reads
// run in parallel and always observe every commit that returned before
// they started.
//
// # Routing
//
// Which fields each operation targets is declared in the mapping's
// optional "roles" object (search, id, return). Without it, search
// targets fields flagged "text", find targets "gid" (or the first indexed
// u64), and find projects "data" (or the first stored field).
package textsearch
