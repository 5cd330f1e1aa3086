package votes

import (
	"os"
	"testing"

	"github.com/emilythestrangee/campus-events/backend/internal/testutil"
)

func TestMain(m *testing.M) {
	code := m.Run()
	testutil.Terminate()
	os.Exit(code)
}
