package enrichment

import "github.com/dev-mohitbeniwal/bouncer/model"

var levelRank = map[model.SecurityLevel]int{
	model.LevelViewer:    0,
	model.LevelAnalyst:   1,
	model.LevelDeveloper: 2,
	model.LevelAdmin:     3,
}

// classify picks the highest level named by the caller's roles, raised to at
// least analyst when a sensitive source was ingested.
func classify(user model.User, sources map[string]*model.ContextSource) model.SecurityLevel {
	level := model.LevelViewer
	for _, role := range user.Roles {
		candidate := model.SecurityLevel(role)
		if rank, ok := levelRank[candidate]; ok && rank > levelRank[level] {
			level = candidate
		}
	}
	for _, src := range sources {
		if src.Sensitive && levelRank[level] < levelRank[model.LevelAnalyst] {
			level = model.LevelAnalyst
		}
	}
	return level
}
