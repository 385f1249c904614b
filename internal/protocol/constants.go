// Package protocol defines the Fair Protocol tag vocabulary and the ordered
// tag-set container used by every transaction the operator reads or writes.
package protocol

// Tag names attached to ledger transactions. The protocol has no typed
// schema; these names are its structured-data surface.
const (
	TagAppName                = "App-Name"
	TagAppVersion             = "App-Version"
	TagProtocolName           = "Protocol-Name"
	TagProtocolVersion        = "Protocol-Version"
	TagConversationIdentifier = "Conversation-Identifier"
	TagContentType            = "Content-Type"
	TagUnixTime               = "Unix-Time"
	TagScriptCurator          = "Script-Curator"
	TagScriptName             = "Script-Name"
	TagScriptUser             = "Script-User"
	TagScriptOperator         = "Script-Operator"
	TagScriptTransaction      = "Script-Transaction"
	TagRequestTransaction     = "Request-Transaction"
	TagResponseTransaction    = "Response-Transaction"
	TagRegistrationTransaction = "Registration-Transaction"
	TagInferenceTransaction   = "Inference-Transaction"
	TagOperationName          = "Operation-Name"
	TagContract               = "Contract"
	TagInput                  = "Input"
	TagSequencerOwner         = "Sequencer-Owner"
	TagAssetNames             = "Asset-Names"
	TagNegativePrompt         = "Negative-Prompt"
	TagPrompt                 = "Prompt"
	TagIndexedBy              = "Indexed-By"
	TagTopicAI                = "topic:ai-generated"
	TagModelName              = "Model-Name"
	TagDescription            = "Description"
	TagUserCustomTags         = "User-Custom-Tags"
	TagInferenceSeed          = "Inference-Seed"
	TagNImages                = "N-Images"
	TagTitle                  = "Title"
	TagType                   = "Type"
	TagLicense                = "License"
	TagDerivation             = "Derivation"
	TagCommercialUse          = "Commercial-Use"
	TagContractSrc            = "Contract-Src"
	TagContractManifest       = "Contract-Manifest"
	TagInitState              = "Init-State"
	TagOperatorFee            = "Operator-Fee"
)

// Protocol identity and operation names.
const (
	ProtocolName    = "Fair Protocol"
	ProtocolVersion = "1.0"

	OperationInferenceRequest  = "Script Inference Request"
	OperationInferenceResponse = "Script Inference Response"
	OperationInferencePayment  = "Inference Payment"
	OperationRegistration      = "Operator Registration"
	OperationCancel            = "Operator Cancellation"
	OperationActiveProof       = "Operator Active Proof"
)

// Well-known contract and vault identifiers on the ledger.
const (
	VaultAddress          = "tXd-BOaxmxtgswzwMLnryROAYlX5uDC9-XK2P4VNCQQ"
	UContractID           = "KTzTXT_ANmF84fWEKHzWURD1LWd9QaFR9yfYUwH2Lxw"
	AtomicTokenContractID = "h9v17KHV4SXwdW2-JHU6a23f6R0YtbXZJJht8LfP8QM"
	UDLLicenseID          = "yRj4a5KMctX_uOmKWCFJIjmY8DeJcusVk6-HzLiM_t8"
)

// Fee split applied to the operator fee. These are the shares the payment
// verifier proves against; they must match the on-chain payment amounts
// produced by the marketplace front end.
const (
	MarketplaceFeeShare = 0.10
	CuratorFeeShare     = 0.05
	CreatorFeeShare     = 0.15
)

// MaxTagValueLen bounds prompt, negative prompt and description values on
// outbound transactions.
const MaxTagValueLen = 1000

// notOverridable lists protocol-reserved tag names. A user custom tag whose
// name appears here is dropped instead of applied.
var notOverridable = map[string]struct{}{
	TagAppName:                 {},
	TagAppVersion:              {},
	TagProtocolName:            {},
	TagProtocolVersion:         {},
	TagScriptName:              {},
	TagScriptCurator:           {},
	TagOperationName:           {},
	TagScriptTransaction:       {},
	TagInferenceTransaction:    {},
	TagRequestTransaction:      {},
	TagResponseTransaction:     {},
	TagRegistrationTransaction: {},
	TagContract:                {},
	TagInput:                   {},
	TagSequencerOwner:          {},
	TagUnixTime:                {},
	TagModelName:               {},
	TagPrompt:                  {},
	TagNegativePrompt:          {},
	TagInferenceSeed:           {},
	TagScriptUser:              {},
	TagContentType:             {},
	TagScriptOperator:          {},
	TagConversationIdentifier:  {},
}

// Overridable reports whether a user custom tag with the given name may be
// applied to an outbound response.
func Overridable(name string) bool {
	_, reserved := notOverridable[name]
	return !reserved
}
