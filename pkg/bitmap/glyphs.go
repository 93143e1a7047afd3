package bitmap

// Marker glyphs blitted next to a drive's label.
var (
	// Square marks a drive currently exported over USB.
	Square = FromRows([][]byte{
		{1, 1, 1, 1},
		{1, 1, 1, 1},
		{1, 1, 1, 1},
		{1, 1, 1, 1},
	})

	// Arrow marks the widget holding input focus.
	Arrow = FromRows([][]byte{
		{1, 0, 0, 0},
		{1, 1, 0, 0},
		{1, 1, 1, 0},
		{1, 1, 1, 1},
		{1, 1, 1, 0},
		{1, 1, 0, 0},
		{1, 0, 0, 0},
	})
)
