package main

// EntityType identifies what kind of thing an entity is.
type EntityType byte

const (
	EntityNull EntityType = iota
	EntityWall
	EntityDoor
	EntityCharacter
)

var entityTypeNames = []string{"Null", "Wall", "Door", "Character"}

func (t EntityType) String() string {
	if int(t) < len(entityTypeNames) {
		return entityTypeNames[t]
	}
	return "Unknown"
}

// EntityFeatures is a bitset of behavioral capabilities.
type EntityFeatures uint64

const (
	FeatureWalksAround EntityFeatures = 1 << iota
	FeatureCanFight
)

// Entity is one object in the world. Entities are owned by the chunked
// store they live in and referenced elsewhere only by ID. ID 0 is reserved
// and never assigned.
type Entity struct {
	Changed  bool
	X        uint8
	Y        uint8
	Color    uint8
	Type     EntityType
	ID       uint64
	Features EntityFeatures
}

// FeaturesForType returns the capability bitset a freshly created entity
// of the given type starts with.
func FeaturesForType(t EntityType) EntityFeatures {
	switch t {
	case EntityCharacter:
		return FeatureWalksAround | FeatureCanFight
	default:
		return 0
	}
}
