package service

import "path/filepath"

// Layout is the on-disk arrangement under the data directory.
type Layout struct {
	Uploads   string
	Temp      string
	Previews  string
	FileTable string
}

func NewLayout(dataDir string) Layout {
	uploads := filepath.Join(dataDir, "UploadedVideos")
	return Layout{
		Uploads:   uploads,
		Temp:      filepath.Join(uploads, "Temp"),
		Previews:  filepath.Join(uploads, "Previews"),
		FileTable: filepath.Join(uploads, "fileTable.txt"),
	}
}

// Dirs lists the directories that must exist before the service starts.
func (l Layout) Dirs() []string {
	return []string{l.Uploads, l.Temp, l.Previews}
}
