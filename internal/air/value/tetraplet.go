// Package value implements the JValue/JValuable capability model, security
// tetraplets, and call-triplet resolution described in spec.md §3 and
// §4.2's "Value resolution" subsection.
package value

// Tetraplet records where a JSON value came from: which peer and service
// produced it, through which function, and at what JSON path inside the
// original result. JSON-path application rewrites the JSONPath field; it never
// alters PeerPK/ServiceID/FunctionName.
type Tetraplet struct {
	PeerPK       string `json:"peer_pk"`
	ServiceID    string `json:"service_id"`
	FunctionName string `json:"function_name"`
	JSONPath     string `json:"json_path"`
}

// WithPath returns a copy of t with JSONPath replaced.
func (t Tetraplet) WithPath(path string) Tetraplet {
	t.JSONPath = path
	return t
}
