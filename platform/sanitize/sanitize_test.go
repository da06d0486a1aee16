package sanitize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	require.Equal(t, "Dent on door", Text("  <b>Dent</b>\n on\tdoor "))
	require.Equal(t, "alert(1)", Text("&lt;script&gt;alert(1)&lt;/script&gt;"))
	require.Equal(t, "", Text("<br/>"))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "Kras op", Truncate("Kras op bumper", 7))
	require.Equal(t, "Blauw", Truncate("Blauw", 10))
	require.Equal(t, "ééé", Truncate("éééé", 3))
}
