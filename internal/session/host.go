package session

import "github.com/alexohotnikov/envs-checker-vscode/internal/analyzer"

// Command names registered with a host
const (
	CommandCheck  = "envs-checker.check"
	CommandFixAll = "envs-checker.fixAll"
)

// Handler receives a document from the host
type Handler func(doc Document) error

// QuickFixHandler receives the finding a quick-fix action was invoked on
type QuickFixHandler func(doc Document, f analyzer.Finding) error

// Host is the environment that delivers document events and commands
type Host interface {
	OnDocumentSaved(h Handler)
	OnDocumentOpened(h Handler)
	OnCommand(name string, h Handler)
	OnQuickFix(h QuickFixHandler)
}

// Register subscribes the session to a host. Saved and opened documents are
// checked only if they are working files; the commands reject other files.
func (s *Session) Register(host Host) {
	onEvent := func(doc Document) error {
		if !s.scanner.IsWorkingFile(doc.Path) {
			return nil
		}
		_, err := s.Check(doc)
		return err
	}

	host.OnDocumentSaved(onEvent)
	host.OnDocumentOpened(onEvent)

	host.OnCommand(CommandCheck, func(doc Document) error {
		_, err := s.Check(doc)
		return err
	})
	host.OnCommand(CommandFixAll, func(doc Document) error {
		_, err := s.Fix(doc)
		return err
	})
	host.OnQuickFix(func(doc Document, f analyzer.Finding) error {
		_, err := s.FixOne(doc, f.Kind, f.Key)
		return err
	})
}
