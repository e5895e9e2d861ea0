package core

// Command names.
const (
	CommandRegisterDatasetContainer = "RegisterDatasetContainer"
	CommandAddDataset               = "AddDataset"
	CommandRefreshDataset           = "RefreshDataset"
)

// RegisterDatasetContainer asks for a container to be registered.
type RegisterDatasetContainer struct {
	Container ContainerSpec
}

// MessageName implements Message.
func (RegisterDatasetContainer) MessageName() string { return CommandRegisterDatasetContainer }

func (RegisterDatasetContainer) isCommand() {}

// AddDataset asks for a dataset to be written to the catalog.
type AddDataset struct {
	Dataset DatasetSpec
}

// MessageName implements Message.
func (AddDataset) MessageName() string { return CommandAddDataset }

func (AddDataset) isCommand() {}

// RefreshDataset asks for a dataset to be loaded into a container.
// An empty Table defaults to the dataset name.
type RefreshDataset struct {
	DatasetName string
	ContainerID string
	Table       string
}

// MessageName implements Message.
func (RefreshDataset) MessageName() string { return CommandRefreshDataset }

func (RefreshDataset) isCommand() {}
