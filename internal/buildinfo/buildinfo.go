package buildinfo

import "runtime/debug"

// Injectées à la compilation :
//
//	-X github.com/Guilhem-Bonnet/Anime-Tracker/internal/buildinfo.Version=v1.2.0
//	-X github.com/Guilhem-Bonnet/Anime-Tracker/internal/buildinfo.Commit=abcdef
//	-X github.com/Guilhem-Bonnet/Anime-Tracker/internal/buildinfo.Date=2026-10-01
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	Date      string `json:"date,omitempty"`
	GoVersion string `json:"goVersion,omitempty"`
}

// Current complète les valeurs absentes avec les infos de build du binaire
// (go install, vcs stamping).
func Current() Info {
	info := Info{Version: Version, Commit: Commit, Date: Date}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.Date == "" {
				info.Date = s.Value
			}
		}
	}
	return info
}

func (i Info) String() string {
	s := i.Version
	if i.Commit != "" {
		c := i.Commit
		if len(c) > 7 {
			c = c[:7]
		}
		s += " (" + c + ")"
	}
	return s
}
