package domain

// RegistryAuthor is one author entry in a registry record.
type RegistryAuthor struct {
	Given  string
	Family string
}

// RegistryWork is the subset of a bibliographic registry record used to
// build citations. Dates are [year, month, day] parts; any may be missing.
type RegistryWork struct {
	Title               string
	Authors             []RegistryAuthor
	PublishedPrint      []int
	PublishedOnline     []int
	ContainerTitle      string
	ShortContainerTitle string
	Volume              string
	Page                string
}
