package mail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_BookingConfirmed(t *testing.T) {
	body, err := Render(BookingConfirmed, BookingConfirmedData{
		UserName:   "Ada",
		MovieTitle: "Dune",
		ShowDate:   "Mon, 02 Jun 2025",
		ShowTime:   "18:30",
		Seats:      "A1, A2",
		Amount:     "$20.00",
	})
	require.NoError(t, err)

	assert.Contains(t, body, "Hi Ada,")
	assert.Contains(t, body, "A1, A2")
	assert.Contains(t, body, "$20.00")
}

func TestRender_EscapesUserInput(t *testing.T) {
	body, err := Render(ShowAdded, ShowAddedData{UserName: "<script>x</script>", MovieTitle: "Dune"})
	require.NoError(t, err)

	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")
}

func TestRender_UnknownTemplate(t *testing.T) {
	_, err := Render("nope", nil)
	assert.Error(t, err)
}
