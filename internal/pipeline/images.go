package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Faultbox/autolow/internal/config"
	"github.com/Faultbox/autolow/internal/host"
	"github.com/Faultbox/autolow/internal/imageio"
)

// ImageDir resolves where baked images go. An empty configured path means
// the DefaultImageDir folder next to the working file.
func ImageDir(imagePath, workingFile string) (string, error) {
	if imagePath != "" {
		return imagePath, nil
	}
	if workingFile == "" {
		return "", ErrImagePathUnknown
	}
	return filepath.Join(filepath.Dir(workingFile), config.DefaultImageDir), nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// ImageOutput persists baked maps. A nil output saves nothing.
type ImageOutput struct {
	Dir    string
	Format config.ImageFormat
	// Qualify prefixes file names with the low-poly object name.
	Qualify bool
}

// Save writes img as <dir>/[<low>_]<image name><ext> and returns the path.
func (o *ImageOutput) Save(low host.Object, img host.Image) (string, error) {
	if o == nil {
		return "", nil
	}
	prefix := ""
	if o.Qualify {
		prefix = low.Name()
	}
	path := filepath.Join(o.Dir, imageio.Filename(prefix, img.Name(), o.Format))
	if err := imageio.Save(path, img.Pixels(), o.Format); err != nil {
		return "", fmt.Errorf("saving %s: %w", img.Name(), err)
	}
	return path, nil
}
