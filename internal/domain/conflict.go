package domain

// ConflictWarning is an advisory notice that two channels would both push
// authoritative inventory into the warehouses. It never blocks a save.
type ConflictWarning struct {
	ChannelID        string `json:"channelId"`
	OtherChannelID   string `json:"otherChannelId"`
	OtherChannelName string `json:"otherChannelName"`
	Reason           string `json:"reason"`
}

const conflictReason = "both channels push inventory from platform to warehouses; the last writer overwrites the other"

// DetectConflicts recomputes sync-direction conflicts for the subject channel.
// proposed overrides the subject's stored inventory settings when the user is about
// to change them; pass nil to use the stored value.
func DetectConflicts(channels []ChannelIntegration, subjectID string, proposed *InventorySettings) []ConflictWarning {
	var subject *ChannelIntegration
	for i := range channels {
		if channels[i].ID == subjectID {
			subject = &channels[i]
			break
		}
	}

	settings := InventorySettings{}
	switch {
	case proposed != nil:
		settings = *proposed
	case subject != nil:
		settings = subject.Inventory
	}
	if subject != nil && !subject.IsEcommerce() {
		return nil
	}
	if !settings.PushesToWarehouses() {
		return nil
	}

	var warnings []ConflictWarning
	for _, other := range channels {
		if other.ID == subjectID || !other.IsEcommerce() || !other.Enabled {
			continue
		}
		if !other.Inventory.PushesToWarehouses() {
			continue
		}
		warnings = append(warnings, ConflictWarning{
			ChannelID:        subjectID,
			OtherChannelID:   other.ID,
			OtherChannelName: other.Name,
			Reason:           conflictReason,
		})
	}
	return warnings
}
