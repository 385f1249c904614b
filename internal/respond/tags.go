// Package respond derives the outbound tag set for a generated artifact.
// Tag order is protocol-visible: downstream indexers anchor on positions,
// so the assembly order here must not be rearranged.
package respond

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/fair-protocol/operator/internal/inference"
	"github.com/fair-protocol/operator/internal/protocol"
)

// Request is the view of the inbound request the builder needs.
type Request struct {
	ID             string
	Tags           protocol.TagSet
	UserAddress    string
	ConversationID string
}

// Script carries the registration fields stamped onto every response.
type Script struct {
	ID       string
	Name     string
	Curator  string
	ModelName string

	// Optional registration-level prompt fragments merged with the
	// request's values.
	SettingsPrompt         string
	SettingsNegativePrompt string
}

// contractManifest pins the evaluation options for the minted token.
// Field order matters: the serialized value is part of the protocol.
type contractManifest struct {
	EvaluationOptions struct {
		SourceType     string `json:"sourceType"`
		AllowBigInt    bool   `json:"allowBigInt"`
		InternalWrites bool   `json:"internalWrites"`
		UnsafeClient   string `json:"unsafeClient"`
		UseConstructor bool   `json:"useConstructor"`
	} `json:"evaluationOptions"`
}

// initState is the token's initial state granting the requester the single
// unit of balance.
type initState struct {
	FirstOwner string         `json:"firstOwner"`
	CanEvolve  bool           `json:"canEvolve"`
	Balances   map[string]int `json:"balances"`
	Name       string         `json:"name"`
	Ticker     string         `json:"ticker"`
}

const (
	assetBaseTitle = "Fair Protocol Atomic Asset"
	assetTicker    = "FPAA"
)

// Builder assembles response tag sets. Now is injectable so the output is
// reproducible under test.
type Builder struct {
	Now func() time.Time
}

// NewBuilder returns a Builder using wall-clock time.
func NewBuilder() *Builder {
	return &Builder{Now: time.Now}
}

// Build derives the complete ordered tag set for one artifact of an
// inference result. It is pure given its inputs and the injected clock.
func (b *Builder) Build(result inference.Result, req Request, script Script, artifactIndex int) protocol.TagSet {
	prompt := result.Prompt
	if script.SettingsPrompt != "" {
		prompt = script.SettingsPrompt + ", " + result.Prompt
	}
	prompt = protocol.TruncateValue(prompt, protocol.MaxTagValueLen)

	modelName := script.ModelName
	if v, ok := req.Tags.Find(protocol.TagModelName); ok {
		modelName = v
	}

	manifest, _ := json.Marshal(newManifest())
	state, _ := json.Marshal(initState{
		FirstOwner: req.UserAddress,
		CanEvolve:  false,
		Balances:   map[string]int{req.UserAddress: 1},
		Name:       assetBaseTitle,
		Ticker:     assetTicker,
	})

	tags := protocol.TagSet{
		{Name: protocol.TagProtocolName, Value: protocol.ProtocolName},
		{Name: protocol.TagProtocolVersion, Value: req.Tags.Get(protocol.TagProtocolVersion)},
		{Name: protocol.TagOperationName, Value: protocol.OperationInferenceResponse},
		{Name: protocol.TagModelName, Value: modelName},
		{Name: protocol.TagScriptName, Value: script.Name},
		{Name: protocol.TagScriptCurator, Value: script.Curator},
		{Name: protocol.TagScriptTransaction, Value: script.ID},
		{Name: protocol.TagScriptUser, Value: req.UserAddress},
		{Name: protocol.TagRequestTransaction, Value: req.ID},
		{Name: protocol.TagPrompt, Value: prompt},
		{Name: protocol.TagConversationIdentifier, Value: req.ConversationID},

		{Name: protocol.TagAppName, Value: "SmartWeaveContract"},
		{Name: protocol.TagAppVersion, Value: "0.3.0"},
		{Name: protocol.TagContractSrc, Value: protocol.AtomicTokenContractID},
		{Name: protocol.TagContractManifest, Value: string(manifest)},
		{Name: protocol.TagInitState, Value: string(state)},

		{Name: protocol.TagTitle, Value: assetBaseTitle},
		{Name: protocol.TagType, Value: "image"},
		{Name: protocol.TagIndexedBy, Value: "ucm"},

		{Name: protocol.TagLicense, Value: protocol.UDLLicenseID},
		{Name: protocol.TagDerivation, Value: "Allowed-With-License-Passthrough"},
		{Name: protocol.TagCommercialUse, Value: "Allowed"},

		{Name: protocol.TagUnixTime, Value: strconv.FormatInt(b.Now().Unix(), 10)},
		{Name: protocol.TagTopicAI, Value: "ai-generated"},
	}

	if description, ok := req.Tags.Find(protocol.TagDescription); ok && description != "" {
		if len(description) > protocol.MaxTagValueLen {
			description = description[:protocol.MaxTagValueLen]
		}
		tags = tags.InsertAfter(protocol.TagTitle, protocol.Tag{Name: protocol.TagDescription, Value: description})
	}

	if negative := b.negativePrompt(req, script); negative != "" {
		if len(negative) >= protocol.MaxTagValueLen {
			negative = negative[:protocol.MaxTagValueLen]
		}
		tags = tags.InsertAfter(protocol.TagPrompt, protocol.Tag{Name: protocol.TagNegativePrompt, Value: negative})
	}

	if seed := seedAt(result, artifactIndex); seed != "" {
		tags = tags.InsertAfter(protocol.TagNegativePrompt, protocol.Tag{Name: protocol.TagInferenceSeed, Value: seed})
	}

	title := ResolveTitle(req.Tags.Get(protocol.TagAssetNames), req.ID, artifactIndex)
	tags = tags.Replace(protocol.TagTitle, protocol.Tag{Name: protocol.TagTitle, Value: title})

	return applyCustomTags(tags, req.Tags.Get(protocol.TagUserCustomTags))
}

// negativePrompt merges registration and request negative prompts. Both
// present joins them with ", "; either alone passes through.
func (b *Builder) negativePrompt(req Request, script Script) string {
	fromRequest := req.Tags.Get(protocol.TagNegativePrompt)
	switch {
	case script.SettingsNegativePrompt != "" && fromRequest != "":
		return script.SettingsNegativePrompt + ", " + fromRequest
	case script.SettingsNegativePrompt != "":
		return script.SettingsNegativePrompt
	default:
		return fromRequest
	}
}

func seedAt(result inference.Result, idx int) string {
	if idx < 0 || idx >= len(result.Seeds) {
		return ""
	}
	return result.Seeds[idx]
}

// applyCustomTags applies the request's custom tag list. Reserved names
// are dropped, existing names are replaced in place, new names are
// appended one after another following the Unix-Time tag. Malformed JSON
// discards the whole list.
func applyCustomTags(tags protocol.TagSet, raw string) protocol.TagSet {
	if raw == "" {
		return tags
	}
	var custom []protocol.Tag
	if err := json.Unmarshal([]byte(raw), &custom); err != nil {
		return tags
	}

	appended := 0
	for _, tag := range custom {
		if !protocol.Overridable(tag.Name) {
			continue
		}
		if _, exists := tags.Find(tag.Name); exists {
			tags = tags.Replace(tag.Name, tag)
			continue
		}
		anchor := tagIndex(tags, protocol.TagUnixTime)
		tags = tags.InsertAt(anchor+1+appended, tag)
		appended++
	}
	return tags
}

func tagIndex(tags protocol.TagSet, name string) int {
	for i, t := range tags {
		if t.Name == name {
			return i
		}
	}
	return len(tags) - 1
}

func newManifest() contractManifest {
	var m contractManifest
	m.EvaluationOptions.SourceType = "redstone-sequencer"
	m.EvaluationOptions.AllowBigInt = true
	m.EvaluationOptions.InternalWrites = true
	m.EvaluationOptions.UnsafeClient = "skip"
	m.EvaluationOptions.UseConstructor = false
	return m
}
