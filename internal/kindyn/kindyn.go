// Package kindyn exposes the minimal kinematic-model surface the planner
// needs: resolving named robot frames to indices. Full kinematics and
// dynamics live in the robot description collaborator; the planner only
// consumes resolved indices.
package kindyn

// Model resolves frame names against a robot description.
type Model interface {
	// FrameIndex returns the index of the named frame and whether the
	// frame exists in the model.
	FrameIndex(name string) (int, bool)
}

// StaticModel is a Model backed by a fixed, ordered frame list. The index
// of a frame is its position in the list.
type StaticModel struct {
	frames map[string]int
}

// NewStaticModel builds a StaticModel from an ordered list of frame names.
// Duplicate names keep the first index.
func NewStaticModel(frames ...string) *StaticModel {
	m := &StaticModel{frames: make(map[string]int, len(frames))}
	for i, name := range frames {
		if _, exists := m.frames[name]; !exists {
			m.frames[name] = i
		}
	}
	return m
}

// FrameIndex implements Model.
func (m *StaticModel) FrameIndex(name string) (int, bool) {
	idx, ok := m.frames[name]
	return idx, ok
}
