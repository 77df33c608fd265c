package workspace

import (
	"fmt"

	"github.com/forgeproj/forge/models"
)

// Rehydrate rebuilds the created-artifact and diff-review maps from a
// session's flat message history, producing what a live dispatch would
// have left behind, minus the transient diff data the store never
// persists.
//
// It is idempotent and never overwrites an entry populated by a live
// dispatch in the current session: live state wins over history.
func (d *Dispatcher) Rehydrate(messages []models.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, msg := range messages {
		d.indexToID[i] = msg.ID
		if msg.Role != models.RoleAssistant {
			continue
		}
		for _, call := range msg.ToolCalls {
			switch {
			case call.Name == models.ToolCreateDocument:
				if _, exists := d.created[msg.ID]; exists {
					continue
				}
				// The server-issued ID is not embedded in historical
				// arguments, so the record carries a synthetic one.
				d.created[msg.ID] = models.Artifact{
					ID:        syntheticID(),
					ProjectID: d.projectID,
					Name:      call.Args.Name,
					Type:      models.ArtifactDoc,
					Category:  call.Args.Category,
					Content:   call.Args.Content,
				}

			case call.Name.IsEdit():
				if _, exists := d.reviews[msg.ID]; exists {
					continue
				}
				kind := call.Name.EditKind()
				name := call.Args.ArtifactName
				if name == "" {
					name = call.Args.ArtifactID
				}
				// The pre-edit snapshot and the proposed content were
				// never persisted; the rebuilt review shows what was
				// edited but cannot be diffed or accepted.
				d.reviews[msg.ID] = &DiffReview{
					MessageID:    msg.ID,
					ArtifactID:   call.Args.ArtifactID,
					ArtifactName: call.Args.ArtifactName,
					Kind:         kind,
					Summary:      fmt.Sprintf("Historical %s edit of %s", kind, name),
					State:        ReviewReady,
					StatusText:   "Edit from a previous session (preview unavailable)",
					Rehydrated:   true,
				}
			}
		}
	}
}
