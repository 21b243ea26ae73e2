package port

type DedupStore interface {
	Lookup(hash string) (filename string, ok bool)
	Insert(hash, filename string) error
	FindByFilename(filename string) (hash string, ok bool)
}
