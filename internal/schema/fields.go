package schema

// Field ids of the AST31 product family.
const (
	FieldWidth             = "width"
	FieldFrame             = "frame"
	FieldColor             = "color"
	FieldTabletop          = "tabletop"
	FieldSidePanel         = "side-panel"
	FieldSidePanelColor    = "side-panel-color"
	FieldSuperstructure    = "superstructure"
	FieldShelfCount        = "shelf-count"
	FieldPegboardCount     = "pegboard-count"
	FieldContainerColor    = "container-color"
	FieldContainerPosition = "container-position"
	FieldRailCount         = "rail-count"
	FieldShelfBoard        = "shelf-board"
)

// Option values the rule set refers to by name.
const (
	None      = "none"
	Left      = "left"
	Right     = "right"
	LeftRight = "left-right"

	MatchFrame = "match-frame"

	FrameElectronics    = "ast31-el"
	ColorAluminiumWhite = "weissaluminium"

	SuperstructureLow  = "low"
	SuperstructureHigh = "high"

	Width750 = "750"
)
