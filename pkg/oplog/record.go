// Package oplog defines the invocation log: an append-only, strictly
// ordered sequence of operation records owned by a single worker instance.
// The log is written during live execution and consumed front-to-back
// during replay. Implementations (memory, SQL, Postgres, Redis) must
// provide identical semantics so that replay behaves the same regardless
// of backend.
package oplog

// OperationID identifies a logical effectful operation, e.g. "stt.transcribe".
// It must be stable across live execution and replay for the same call site.
type OperationID struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// Op is shorthand for constructing an OperationID.
func Op(namespace, name string) OperationID {
	return OperationID{Namespace: namespace, Name: name}
}

func (o OperationID) String() string {
	if o.Namespace == "" {
		return o.Name
	}
	return o.Namespace + "." + o.Name
}

// Outcome is the recorded result of one operation call. Exactly one of
// Value and Failure is meaningful: Value holds the encoded output when
// OK is true, Failure holds the encoded operation error otherwise.
type Outcome struct {
	OK      bool   `json:"ok"`
	Value   []byte `json:"value,omitempty"`
	Failure []byte `json:"failure,omitempty"`
}

// Record is one logged invocation: the operation identity, its encoded
// input, and its encoded outcome. Records are immutable once appended.
// Seq is assigned by the log at append time and is strictly increasing
// per worker instance.
type Record struct {
	Seq       uint64      `json:"seq"`
	Operation OperationID `json:"operation"`
	Input     []byte      `json:"input,omitempty"`
	Outcome   Outcome     `json:"outcome"`
}
