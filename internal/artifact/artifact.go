package artifact

// Kind classifies generated artifacts for validation.
type Kind string

const (
	KindDesignDocument    Kind = "design-document"
	KindPromptTemplate    Kind = "prompt-template"
	KindSourceFile        Kind = "source-file"
	KindConfigurationFile Kind = "configuration-file"
)

// Kinds lists every artifact kind the system produces.
var Kinds = []Kind{
	KindDesignDocument,
	KindPromptTemplate,
	KindSourceFile,
	KindConfigurationFile,
}

// Artifact is one generated content unit owned by a (project, stage) pair.
// Artifacts exist transiently until the staging transaction promotes them;
// content that fails validation never reaches a permanent path.
type Artifact struct {
	ProjectID string
	Stage     string
	Name      string
	Kind      Kind
	Content   string
}

// Ref points at a committed artifact. Only promoted (validated) artifacts
// are ever referenced.
type Ref struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
	Path string `json:"path"`
}
