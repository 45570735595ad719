package service

import "macrostudio/models"

// PlaybackService previews the active macro's sequences on a Player.
type PlaybackService struct {
	store  *MacroStore
	player *Player
}

func NewPlaybackService(store *MacroStore, player *Player) *PlaybackService {
	return &PlaybackService{store: store, player: player}
}

// Start plays a snapshot of the active macro's main or release sequence.
// started is false when a run was already in progress.
func (s *PlaybackService) Start(target models.EditTarget) (started bool, err error) {
	m, err := s.store.Active()
	if err != nil {
		return false, err
	}
	return s.player.Start(m.Sequence(target)), nil
}

func (s *PlaybackService) Stop()  { s.player.Stop() }
func (s *PlaybackService) Reset() { s.player.Reset() }
func (s *PlaybackService) Close() { s.player.Close() }

func (s *PlaybackService) Frame() models.PlaybackFrame {
	return s.player.Frame()
}

// Attach runs fn with the current frame while holding off further steps.
func (s *PlaybackService) Attach(fn func(models.PlaybackFrame)) {
	s.player.Attach(fn)
}
