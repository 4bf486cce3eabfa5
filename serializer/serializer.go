package serializer

type (
	// JSON codec used for envelopes and event payloads.
	JSONSerializer interface {
		Marshal(v any) ([]byte, error)
		Unmarshal(data []byte, v any) error
	}
)
