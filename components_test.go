package depot

// Shared test components, registered once for the whole test binary.

type Position struct {
	X float64
	Y float64
}

type Velocity struct {
	X float64
	Y float64
}

type Health struct {
	Current int
	Max     int
}

type Name struct {
	Value string
}

// Frozen is a marker component: no fields, presence only.
type Frozen struct{}

// Target holds an embedded entity reference, exercising handle remapping in
// the codec.
type Target struct {
	Enemy Entity
}

var (
	posComp    = FactoryNewComponent[Position]("position")
	velComp    = FactoryNewComponent[Velocity]("velocity")
	healthComp = FactoryNewComponent[Health]("health")
	nameComp   = FactoryNewComponent[Name]("name")
	frozenComp = FactoryNewComponent[Frozen]("frozen")
	targetComp = FactoryNewComponent[Target]("target")
)
