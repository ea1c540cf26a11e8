package mcp

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

const (
	ProtocolVersion20250326 string = "2025-03-26"
	ProtocolVersion20241105 string = "2024-11-05"
	LatestProtocolVersion          = ProtocolVersion20250326
)

var SupportedProtocolVersions = map[string]bool{
	LatestProtocolVersion:   true,
	ProtocolVersion20241105: true,
}

// JSONRPCVersion represents the version of the JSON-RPC protocol.
const JSONRPCVersion = "2.0"

const (
	// MethodInitialize Initiates connection and negotiates protocol capabilities.
	// https://modelcontextprotocol.io/specification/2025-03-26/basic/lifecycle#initialization
	MethodInitialize string = "initialize"

	// MethodPing Verifies connection liveness between client and server.
	// https://modelcontextprotocol.io/specification/2025-03-26/basic/utilities/ping
	MethodPing string = "ping"

	// MethodResourcesList Lists all available server resources.
	// https://modelcontextprotocol.io/specification/2025-03-26/server/resources
	MethodResourcesList string = "resources/list"

	// MethodResourcesTemplatesList Provides URI templates for constructing resource URIs.
	MethodResourcesTemplatesList string = "resources/templates/list"

	// MethodResourcesRead retrieves content of a specific resource by URI.
	MethodResourcesRead string = "resources/read"

	// MethodToolsList Lists all available executable tools.
	// https://modelcontextprotocol.io/specification/2025-03-26/server/tools
	MethodToolsList string = "tools/list"

	// MethodToolsCall Invokes a specific Tool with provided parameters.
	MethodToolsCall string = "tools/call"

	MethodNotificationInitialized = "notifications/initialized"

	MethodNotificationCancelled = "notifications/cancelled"
)

// implementation describes the name and version of an MCP implementation.
type implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// initializeRequestParams sent from the client to the server when it first connects, asking it to begin initialization.
type initializeRequestParams struct {
	// ProtocolVersion is the latest version of the Model Context Protocol that the client supports.
	ProtocolVersion string `json:"protocolVersion"`

	Capabilities map[string]any `json:"capabilities"`

	ClientInfo implementation `json:"clientInfo"`
}

// ServerCapabilities is a set of capabilities the server advertises on initialization.
type ServerCapabilities struct {
	// Resources present if the server offers any resources to read.
	Resources *ResourceCapability `json:"resources,omitempty"`

	// Tools present if the server offers any tools to call.
	Tools *ToolCapability `json:"tools,omitempty"`
}

// ResourceCapability represents server capabilities for resources.
type ResourceCapability struct {
	// Subscribe indicates this server supports subscribing to resource updates if true.
	Subscribe bool `json:"subscribe,omitempty"`

	// ListChanged indicates this server supports notifications for changes to the resource list if true.
	ListChanged bool `json:"listChanged,omitempty"`
}

// ToolCapability represents server capabilities for tools.
type ToolCapability struct {
	// ListChanged indicates this server supports notifications for changes to the Tool list if true.
	ListChanged bool `json:"listChanged,omitempty"`
}

// initializeResult sent from the server after receiving an initialize request from the client.
type initializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      implementation     `json:"serverInfo"`

	// Instructions describe how to use the server and its features.
	Instructions string `json:"instructions,omitempty"`
}

// Resource that the server is capable of reading.
type Resource struct {
	// URI of this resource.
	URI string `json:"uri"`

	// Name of the resource that is human-readable.
	Name string `json:"name"`

	// Description of what this resource represents.
	Description string `json:"description,omitempty"`

	// MimeType of this resource, if known.
	MimeType string `json:"mimeType,omitempty"`
}

// ResourceTemplate a template description for resources available on the server.
type ResourceTemplate struct {
	// URITemplate can be used to construct resource URIs. according to RFC 6570
	URITemplate string `json:"uriTemplate"`

	// Name for the type of resource this template refers to.
	Name string `json:"name"`

	// Description of what this template is for.
	Description string `json:"description,omitempty"`

	// MimeType for all resources that match this template.
	MimeType string `json:"mimeType,omitempty"`
}

// listResourcesResult is the server's response to a request for a list of resources.
type listResourcesResult struct {
	Resources []Resource `json:"resources"`
}

// listResourceTemplatesResult is the server's response to a request for a list of resource templates.
type listResourceTemplatesResult struct {
	ResourceTemplates []ResourceTemplate `json:"resourceTemplates"`
}

// readResourceRequestParams sent from the client to the server to read a specific resource URI.
type readResourceRequestParams struct {
	URI string `json:"uri"`
}

// ResourceContent is the text content of a specific resource or sub-resource.
type ResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text"`
}

// readResourceResult is the server's response to a resources/read request from the client.
type readResourceResult struct {
	Contents []ResourceContent `json:"contents"`
}

// Tool defines a Tool that the client can call.
type Tool struct {
	// Name of the Tool.
	Name string `json:"name"`

	// Description of the Tool that is human-readable.
	Description string `json:"description,omitempty"`

	// InputSchema defines the arguments that the Tool accepts in JSON Schema format.
	InputSchema *jsonschema.Schema `json:"inputSchema"`

	// Annotations hint to the client about the Tool's behavior.
	Annotations *ToolAnnotations `json:"annotations,omitempty"`

	// handler handles invoke the Tool with the provided arguments.
	handler ToolHandlerFunc `json:"-"`
}

// ToolAnnotations represents additional properties describing a Tool to clients.
//
// NOTE: all properties in ToolAnnotations are **hints**.
type ToolAnnotations struct {
	// Title is a human-readable title for the Tool.
	Title string `json:"title,omitempty"`

	// ReadOnlyHint indicates the Tool does not modify its environment if true
	ReadOnlyHint bool `json:"readOnlyHint,omitempty"`

	// IdempotentHint indicates that calling the Tool repeatedly with the same arguments
	// will have no additional effect on the its environment if true.
	IdempotentHint bool `json:"idempotentHint,omitempty"`

	// OpenWorldHint indicates this Tool may interact with an "open world" of external entities if true.
	OpenWorldHint bool `json:"openWorldHint,omitempty"`
}

type listToolsResult struct {
	Tools []Tool `json:"tools"`
}

// callToolRequestParams is used by the client to invoke a Tool provided by the server.
type callToolRequestParams struct {
	// Name is the name of the Tool.
	Name string `json:"name"`

	// Arguments contains the arguments to use for the Tool.
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// TextContent is a text item of a Tool result.
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallToolResult is the server's response to a Tool call.
type CallToolResult struct {
	Content []TextContent `json:"content"`

	// IsError reports that the Tool ran but its outcome is an error the caller should see.
	IsError bool `json:"isError,omitempty"`
}
