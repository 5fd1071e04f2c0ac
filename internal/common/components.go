package common

const (
	ComponentProcessor   = "processor"
	ComponentSource      = "source"
	ComponentStore       = "store"
	ComponentCheckpoint  = "checkpoint"
	ComponentMaintenance = "maintenance"
	ComponentAPI         = "api"
	ComponentProof       = "proof"
)

var AllComponents = map[string]struct{}{
	ComponentProcessor:   {},
	ComponentSource:      {},
	ComponentStore:       {},
	ComponentCheckpoint:  {},
	ComponentMaintenance: {},
	ComponentAPI:         {},
	ComponentProof:       {},
}
