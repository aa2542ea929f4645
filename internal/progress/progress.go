package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/tendant/simple-thumbnail-pipeline/pkg/pipeline"
)

var (
	_ pipeline.Reporter = (*Console)(nil)
	_ pipeline.Reporter = Nop{}
)

// Console prints a dot per thumbnail and an error line per failure
type Console struct {
	mu  sync.Mutex
	out io.Writer
	err io.Writer
}

// NewConsole creates a console reporter
func NewConsole(out, errOut io.Writer) *Console {
	return &Console{out: out, err: errOut}
}

func (c *Console) Start(total int, destDir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "📷 Generating %d thumbnails into %s...\n", total, destDir)
}

func (c *Console) Success(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, ".")
}

func (c *Console) Failure(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.err, "\n❌ Error with %s: %v\n", name, err)
}

func (c *Console) Done(result *pipeline.BatchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if result.Failed == 0 && result.Canceled == 0 {
		fmt.Fprintf(c.out, "\n✅ Done! %d thumbnails created in %s\n", result.Succeeded, result.DestDir)
		return
	}
	fmt.Fprintf(c.out, "\n⚠️  Finished with errors: %d created, %d failed, %d canceled in %s\n",
		result.Succeeded, result.Failed, result.Canceled, result.DestDir)
}

// Nop discards all progress
type Nop struct{}

func (Nop) Start(int, string)          {}
func (Nop) Success(string)             {}
func (Nop) Failure(string, error)      {}
func (Nop) Done(*pipeline.BatchResult) {}
