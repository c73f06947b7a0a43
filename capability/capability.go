// Package capability implements the Capability Model (§4.9): inference of
// advertised feature flags from a session's registered handlers, merged
// with explicit overrides.
package capability

import "github.com/mcprotocol/sessioncore/mcp"

// ListChanged is the shape shared by several server capability flags.
type ListChanged struct {
	Enabled     bool
	ListChanged bool
}

// Server holds the server-side capability flags inferred from registered
// handlers and/or set explicitly. Logging and Completions are *bool, not
// bool, so that an explicit override of false is distinguishable from "no
// override given" the same way the pointer-typed Tools/Prompts/Resources
// fields already are.
type Server struct {
	Tools        *ListChanged
	Prompts      *ListChanged
	Resources    *ResourcesFlag
	Logging      *bool
	Completions  *bool
	Experimental map[string]any
}

// ResourcesFlag additionally tracks subscribe support, which tools/prompts
// do not have.
type ResourcesFlag struct {
	ListChanged bool
	Subscribe   bool
}

// Client holds the client-side capability flags. Sampling and Elicitation
// are *bool for the same reason as Server.Logging/Completions: an explicit
// override of false must be distinguishable from no override at all.
type Client struct {
	Sampling     *bool
	Elicitation  *bool
	Roots        *ListChanged
	Experimental map[string]any
}

func boolPtr(b bool) *bool { return &b }

// HandlerSet is the minimal view the inference functions need of a
// session's registered handlers: just "is something registered for this
// method", not the handlers themselves.
type HandlerSet interface {
	HasRequestHandler(method mcp.Method) bool
	HasNotificationHandler(method mcp.Method) bool
}

// InferServer builds a Server capability set from the handlers registered on
// hs. A ListTools handler implies tools; ListPrompts implies prompts;
// ListResources or ReadResource implies resources; a SetLevel handler
// implies logging; a Complete handler implies completions.
func InferServer(hs HandlerSet) Server {
	var s Server

	if hs.HasRequestHandler(mcp.ToolsListMethod) {
		s.Tools = &ListChanged{Enabled: true, ListChanged: hs.HasNotificationHandler(mcp.ToolsListChangedNotificationMethod)}
	}
	if hs.HasRequestHandler(mcp.PromptsListMethod) {
		s.Prompts = &ListChanged{Enabled: true, ListChanged: hs.HasNotificationHandler(mcp.PromptsListChangedNotificationMethod)}
	}
	if hs.HasRequestHandler(mcp.ResourcesListMethod) || hs.HasRequestHandler(mcp.ResourcesReadMethod) {
		s.Resources = &ResourcesFlag{
			ListChanged: hs.HasNotificationHandler(mcp.ResourcesListChangedNotificationMethod),
			Subscribe:   hs.HasRequestHandler(mcp.ResourcesSubscribeMethod),
		}
	}
	if hs.HasRequestHandler(mcp.LoggingSetLevelMethod) {
		s.Logging = boolPtr(true)
	}
	if hs.HasRequestHandler(mcp.CompletionCompleteMethod) {
		s.Completions = boolPtr(true)
	}

	return s
}

// InferClient builds a Client capability set from the handlers registered on
// hs: a CreateMessage handler implies sampling, an Elicit handler implies
// elicitation, a ListRoots handler implies roots.
func InferClient(hs HandlerSet) Client {
	var c Client

	if hs.HasRequestHandler(mcp.SamplingCreateMessageMethod) {
		c.Sampling = boolPtr(true)
	}
	if hs.HasRequestHandler(mcp.ElicitationCreateMethod) {
		c.Elicitation = boolPtr(true)
	}
	if hs.HasRequestHandler(mcp.RootsListMethod) {
		c.Roots = &ListChanged{Enabled: true, ListChanged: hs.HasNotificationHandler(mcp.RootsListChangedNotificationMethod)}
	}

	return c
}

// MergeServer combines an inferred Server set with an explicit override:
// any non-nil/non-zero field on override wins, field by field. Experimental
// is always taken from override, even if empty, since there is no
// "inferred" experimental set.
func MergeServer(inferred, override Server) Server {
	out := inferred
	if override.Tools != nil {
		out.Tools = override.Tools
	}
	if override.Prompts != nil {
		out.Prompts = override.Prompts
	}
	if override.Resources != nil {
		out.Resources = override.Resources
	}
	if override.Logging != nil {
		out.Logging = override.Logging
	}
	if override.Completions != nil {
		out.Completions = override.Completions
	}
	out.Experimental = override.Experimental
	return out
}

// MergeClient combines an inferred Client set with an explicit override the
// same way MergeServer does.
func MergeClient(inferred, override Client) Client {
	out := inferred
	if override.Sampling != nil {
		out.Sampling = override.Sampling
	}
	if override.Elicitation != nil {
		out.Elicitation = override.Elicitation
	}
	if override.Roots != nil {
		out.Roots = override.Roots
	}
	out.Experimental = override.Experimental
	return out
}

// DiffServer compares an inferred Server capability set against the final,
// merged set that is actually advertised on the wire, and reports the two
// mismatches named in §4.9: a name in unfulfilled is advertised but has no
// matching handler registered (the more severe case — a peer will call it
// and get "method not found"); a name in unadvertisedHandler has a
// registered handler that isn't advertised (less severe — the handler still
// works if called, but a peer that trusts capabilities alone won't try).
func DiffServer(inferred, merged Server) (unfulfilled, unadvertisedHandler []string) {
	for _, p := range []struct {
		name                   string
		hasHandler, advertised bool
	}{
		{"tools", inferred.Tools != nil, merged.Tools != nil},
		{"prompts", inferred.Prompts != nil, merged.Prompts != nil},
		{"resources", inferred.Resources != nil, merged.Resources != nil},
		{"logging", inferred.Logging != nil && *inferred.Logging, merged.Logging != nil && *merged.Logging},
		{"completions", inferred.Completions != nil && *inferred.Completions, merged.Completions != nil && *merged.Completions},
	} {
		if p.advertised && !p.hasHandler {
			unfulfilled = append(unfulfilled, p.name)
		}
		if p.hasHandler && !p.advertised {
			unadvertisedHandler = append(unadvertisedHandler, p.name)
		}
	}
	return
}

// DiffClient is DiffServer's client-side counterpart.
func DiffClient(inferred, merged Client) (unfulfilled, unadvertisedHandler []string) {
	for _, p := range []struct {
		name                   string
		hasHandler, advertised bool
	}{
		{"sampling", inferred.Sampling != nil && *inferred.Sampling, merged.Sampling != nil && *merged.Sampling},
		{"elicitation", inferred.Elicitation != nil && *inferred.Elicitation, merged.Elicitation != nil && *merged.Elicitation},
		{"roots", inferred.Roots != nil, merged.Roots != nil},
	} {
		if p.advertised && !p.hasHandler {
			unfulfilled = append(unfulfilled, p.name)
		}
		if p.hasHandler && !p.advertised {
			unadvertisedHandler = append(unadvertisedHandler, p.name)
		}
	}
	return
}

// ToWire converts a Server capability set to its JSON-RPC representation.
func (s Server) ToWire() mcp.ServerCapabilities {
	var w mcp.ServerCapabilities
	if s.Tools != nil {
		w.Tools = &struct {
			ListChanged bool `json:"listChanged"`
		}{ListChanged: s.Tools.ListChanged}
	}
	if s.Prompts != nil {
		w.Prompts = &struct {
			ListChanged bool `json:"listChanged"`
		}{ListChanged: s.Prompts.ListChanged}
	}
	if s.Resources != nil {
		w.Resources = &struct {
			ListChanged bool `json:"listChanged"`
			Subscribe   bool `json:"subscribe"`
		}{ListChanged: s.Resources.ListChanged, Subscribe: s.Resources.Subscribe}
	}
	if s.Logging != nil && *s.Logging {
		w.Logging = &struct{}{}
	}
	if s.Completions != nil && *s.Completions {
		w.Completions = &struct{}{}
	}
	return w
}

// ToWire converts a Client capability set to its JSON-RPC representation.
func (c Client) ToWire() mcp.ClientCapabilities {
	var w mcp.ClientCapabilities
	if c.Roots != nil {
		w.Roots = &struct {
			ListChanged bool `json:"listChanged"`
		}{ListChanged: c.Roots.ListChanged}
	}
	if c.Sampling != nil && *c.Sampling {
		w.Sampling = &struct{}{}
	}
	if c.Elicitation != nil && *c.Elicitation {
		w.Elicitation = &struct{}{}
	}
	return w
}
