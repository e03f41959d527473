package entities

// BundleFile is a file placed in a report staging directory
type BundleFile struct {
	Name        string
	Path        string
	Description string
	SHA256      string
	Members     []string
}

// ReportBundle is a staging directory holding the archives and the HTML index
type ReportBundle struct {
	StagingDir string
	HTMLPath   string
	Archives   []BundleFile
}

// BlobHandle is the opaque identifier returned by the blob store
type BlobHandle struct {
	ID   string
	Name string
}

// HTMLLink references an HTML view inside an uploaded package
type HTMLLink struct {
	Handle      string
	Name        string
	Label       string
	Description string
}

// FileLink is a downloadable attachment of a report, either a local file
// or an already uploaded blob
type FileLink struct {
	Path        string
	Handle      string
	Name        string
	Label       string
	Description string
}

// ReportDescriptor is submitted to the report registry
type ReportDescriptor struct {
	WorkspaceName       string
	ObjectName          string
	Message             string
	HTMLLinks           []HTMLLink
	DirectHTMLLinkIndex int
	FileLinks           []FileLink
	HTMLWindowHeight    int
	SignatureHandle     string
}

// ReportInfo identifies a registered report
type ReportInfo struct {
	Name string
	Ref  string
}
