package domain

type Location string

const (
	LocationEndOfLine Location = "end_of_line"
	LocationPoolStock Location = "pool_stock"
	LocationTPA       Location = "tpa"
)

type ContainerStatus string

const (
	ContainerStatusActive      ContainerStatus = "active"
	ContainerStatusSplit       ContainerStatus = "split"
	ContainerStatusMerged      ContainerStatus = "merged"
	ContainerStatusQualityHold ContainerStatus = "quality_hold"
)

type Container struct {
	SerialNumber    string          `json:"serialNumber"`
	PartNumber      string          `json:"partNumber"`
	Quantity        int             `json:"quantity"`
	Location        Location        `json:"location"`
	Status          ContainerStatus `json:"status"`
	ParentContainer string          `json:"parentContainer,omitempty"`
	ChildContainers []string        `json:"childContainers,omitempty"`
}

// Inventory groups every container of one part number.
type Inventory struct {
	PartNumber      string      `json:"partNumber"`
	PartDescription string      `json:"partDescription"`
	Location        Location    `json:"location"`
	Containers      []Container `json:"containers"`
	Version         int         `json:"version"` // optimistic locking
}

// QuantityAvailable sums the quantities of active containers.
func (inv *Inventory) QuantityAvailable() int {
	total := 0
	for _, c := range inv.Containers {
		if c.Status == ContainerStatusActive {
			total += c.Quantity
		}
	}
	return total
}

// ActiveAt returns copies of the active containers stored at loc.
func (inv *Inventory) ActiveAt(loc Location) []Container {
	var out []Container
	for _, c := range inv.Containers {
		if c.Status == ContainerStatusActive && c.Location == loc {
			out = append(out, c)
		}
	}
	return out
}

// IndexOf returns the position of serial in Containers, or -1.
func (inv *Inventory) IndexOf(serial string) int {
	for i := range inv.Containers {
		if inv.Containers[i].SerialNumber == serial {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers never share container slices with a store.
func (inv Inventory) Clone() Inventory {
	out := inv
	out.Containers = make([]Container, len(inv.Containers))
	for i, c := range inv.Containers {
		out.Containers[i] = c.Clone()
	}
	return out
}

func (c Container) Clone() Container {
	out := c
	if c.ChildContainers != nil {
		out.ChildContainers = append([]string(nil), c.ChildContainers...)
	}
	return out
}
