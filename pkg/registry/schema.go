// pkg/registry/schema.go
package registry

type NodeRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Nodes       []NodeSpec `json:"nodes"`
}

type NodeSpec struct {
	ID           string                 `json:"id"`
	DisplayName  string                 `json:"displayName"`
	Description  string                 `json:"description"`
	Stage        string                 `json:"stage"`
	Version      string                 `json:"version"`
	InputSchema  map[string]interface{} `json:"inputSchema"`
	OutputSchema map[string]interface{} `json:"outputSchema"`
	ErrorCodes   []string               `json:"errorCodes"`
	Timeout      string                 `json:"timeout"`
	Retries      int                    `json:"retries"`
	Parallel     []string               `json:"parallel,omitempty"`
	Tags         []string               `json:"tags,omitempty"`
}
