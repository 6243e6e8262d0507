package console_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/cory-johannsen/encounter/internal/clock"
	"github.com/cory-johannsen/encounter/internal/game/combat"
	"github.com/cory-johannsen/encounter/internal/game/condition"
	"github.com/cory-johannsen/encounter/internal/game/console"
	"github.com/cory-johannsen/encounter/internal/game/dice"
	"github.com/cory-johannsen/encounter/internal/game/session"
	"github.com/cory-johannsen/encounter/internal/game/sheet"
	"github.com/cory-johannsen/encounter/internal/snapshot"
	mocksnapshot "github.com/cory-johannsen/encounter/internal/snapshot/mock"
)

// maxSource rolls the highest face every time.
type maxSource struct{}

func (maxSource) Intn(n int) int { return n - 1 }

type ConsoleSuite struct {
	suite.Suite
	ctx     context.Context
	repo    *snapshot.MemoryRepository
	sess    *session.Session
	out     *bytes.Buffer
	console *console.Console
}

func TestConsoleSuite(t *testing.T) {
	suite.Run(t, new(ConsoleSuite))
}

func (s *ConsoleSuite) SetupTest() {
	s.ctx = context.Background()
	sheets, err := sheet.LoadDirectory("../../../content/sheets")
	s.Require().NoError(err)
	conds, err := condition.LoadDirectory("../../../content/conditions")
	s.Require().NoError(err)

	s.repo = snapshot.NewMemoryRepository(nil)
	m, err := session.NewManager(session.Config{
		Repository: s.repo,
		Sheets:     sheets,
		Conditions: conds,
		Roller:     dice.NewLoggedRoller(maxSource{}, nil),
		Clock:      clock.NewManual(time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)),
	})
	s.Require().NoError(err)
	s.sess, err = m.Create(s.ctx, "k1", "Road ambush")
	s.Require().NoError(err)

	s.out = &bytes.Buffer{}
	s.console, err = console.New(console.Config{
		Session:    s.sess,
		Sheets:     sheets,
		Conditions: conds,
		Out:        s.out,
	})
	s.Require().NoError(err)
}

// exec runs line, requires it not to fail, and returns what it printed.
func (s *ConsoleSuite) exec(line string) string {
	s.out.Reset()
	quit, err := s.console.Execute(s.ctx, line)
	s.Require().NoError(err, line)
	s.Require().False(quit, line)
	return s.out.String()
}

func (s *ConsoleSuite) roster() {
	s.exec("add goblin")
	s.exec("add cleric Brother Tomas")
	s.exec("add Aria 30 16")
}

func (s *ConsoleSuite) TestAddAndShow() {
	s.roster()
	out := s.exec("show")
	s.Contains(out, "Road ambush  round 1  [active]")
	s.Contains(out, "Goblin")
	s.Contains(out, "Brother Tomas")
	s.Contains(out, "7/7")
	s.Contains(out, "30/30")

	snap := s.sess.Store.Snapshot()
	s.Require().Len(snap.Participants, 3)
	s.Equal("goblin", snap.Participants[0].SheetRef)
	s.Equal(15, snap.Participants[0].ArmorClass)
	s.Equal(16, snap.Participants[2].ArmorClass)
}

func (s *ConsoleSuite) TestUsageAndUnknownAreNotifications() {
	s.Contains(s.exec("add Aria lots"), "not a non-negative integer")
	s.Contains(s.exec("damage"), "usage: damage <who> <amount>")
	s.Contains(s.exec("fireball"), `unknown command "fireball"`)
	s.Contains(s.exec(`act "unterminated`), "unterminated quote")
	s.Contains(s.exec("damage nobody 3"), "no such participant")
}

func (s *ConsoleSuite) TestStartBeforeInitiativeIsRefused() {
	s.roster()
	out := s.exec("start")
	s.Contains(out, "! initiative not rolled")
}

func (s *ConsoleSuite) TestInitiativeAndTurns() {
	s.roster()
	out := s.exec("init")
	s.Contains(out, "Goblin: 22 (d20 20 +2)")

	snap := s.sess.Store.Snapshot()
	s.Equal("Goblin", snap.Participants[0].Name, "highest initiative first")
	s.Require().NotNil(snap.ActiveIndex)
	s.Equal(0, *snap.ActiveIndex)

	s.Contains(s.exec("start"), "Round 1: Goblin's turn")
	s.Contains(s.exec("next"), "Round 1: Brother Tomas's turn")
	s.exec("next")
	out = s.exec("next")
	s.Contains(out, "=== Round 2 ===")
	s.Contains(out, "Round 2: Goblin's turn")
}

func (s *ConsoleSuite) TestSetInitiative() {
	s.roster()
	s.Contains(s.exec("setinit aria 25"), "Aria initiative set to 25")
	s.exec("init")
	s.Equal("Aria", s.sess.Store.Snapshot().Participants[0].Name)
	s.Contains(s.exec("ls"), "25*")
}

func (s *ConsoleSuite) TestDamageAndHeal() {
	s.roster()
	s.Contains(s.exec("damage 3 12"), "Aria: 18/30 HP.")
	s.Contains(s.exec("heal aria 50"), "Aria: 30/30 HP.")
	out := s.exec("dmg gob 99")
	s.Contains(out, "Goblin: 0/7 HP.")
	s.Contains(out, "Goblin is down.")
	s.Contains(s.exec("show"), "0/7 down")
}

func (s *ConsoleSuite) TestConditions() {
	s.roster()
	s.Contains(s.exec("cond aria prone"), "Aria is Prone.")
	s.Contains(s.exec("cond aria frightened 13 2"), "Aria is Frightened (DC 13, 2 rnd).")
	s.Contains(s.exec("cond aria sleepy"), `unknown condition "sleepy"`)

	p, ok := s.sess.Store.Participant(s.sess.Store.Snapshot().Participants[2].ID)
	s.Require().True(ok)
	s.Equal([]string{"Prone", "Frightened"}, p.Conditions.Names())

	s.Contains(s.exec("uncond aria Prone"), "Aria is no longer Prone.")
	s.Contains(s.exec("uncond aria prone"), "Aria is not prone")
}

func (s *ConsoleSuite) TestAttackWithSheetAction() {
	s.roster()
	out := s.exec("act goblin scimitar @aria")
	s.Contains(out, "[attack Scimitar]")
	s.Contains(out, "CRIT")
	s.Contains(out, "Goblin hits Aria")
	s.Contains(out, "Aria takes 8 damage.")

	aria := s.sess.Store.Snapshot().Participants[2]
	s.Equal(22, aria.CurrentHP)

	rolls := s.exec("rolls 5")
	s.Contains(rolls, "[attack Scimitar] 1d20+4 [20] +4 = 24")
	s.Contains(rolls, "[damage Scimitar] 1d6+2 [6] +2 = 8 slashing")
}

func (s *ConsoleSuite) TestActionWithModeAndUnknownAction() {
	s.roster()
	out := s.exec("act goblin scimitar @aria adv")
	s.Contains(out, "advantage")
	s.Contains(s.exec("act goblin fireball @aria"), "! unknown action")
	s.Contains(s.exec("act aria anything"), "has no sheet")
}

func (s *ConsoleSuite) TestSaveActionPendingThenConfirm() {
	s.roster()
	out := s.exec(`act brother "Hold Person" @goblin`)
	s.Contains(out, "WIS save DC 14")
	s.Contains(out, "Pending on Goblin: Paralyzed (DC 14)")

	gob := s.sess.Store.Snapshot().Participants[0]
	s.Empty(gob.Conditions, "conditions wait for confirmation")

	s.Contains(s.exec("confirm goblin"), "Applied 1 condition(s) to Goblin.")
	gob = s.sess.Store.Snapshot().Participants[0]
	s.Equal([]string{"Paralyzed"}, gob.Conditions.Names())
	s.Contains(s.exec("confirm goblin"), "nothing pending on Goblin")
}

func (s *ConsoleSuite) TestUntargetedSaveActionPendingThenConfirm() {
	s.roster()
	out := s.exec(`act brother "Hold Person"`)
	s.Contains(out, "WIS save DC 14")
	s.Contains(out, "Pending with no target: Paralyzed (DC 14). Use 'confirm <name>' to apply.")

	s.Contains(s.exec("confirm aria"), "Applied 1 condition(s) to Aria.")
	aria := s.sess.Store.Snapshot().Participants[2]
	s.Equal([]string{"Paralyzed"}, aria.Conditions.Names())
	s.Contains(s.exec("confirm goblin"), "nothing pending on Goblin")
}

func (s *ConsoleSuite) TestHealingDefaultsToActor() {
	s.roster()
	s.exec("damage brother 20")
	out := s.exec(`act brother "cure wounds"`)
	s.Contains(out, "Brother Tomas regains 12 hit points.")
	s.Equal(30, s.sess.Store.Snapshot().Participants[1].CurrentHP)
}

func (s *ConsoleSuite) TestRemoveAndAmbiguousReference() {
	s.exec("add Goblin 7")
	s.exec(`add "Goblin Boss" 21`)
	s.Contains(s.exec("damage gob 1"), `"gob" is ambiguous`)
	s.Contains(s.exec("rm goblin"), "Removed Goblin.")
	s.Len(s.sess.Store.Snapshot().Participants, 1)
}

func (s *ConsoleSuite) TestSaveAndEnd() {
	s.roster()
	s.True(s.sess.Store.Dirty())
	s.Contains(s.exec("save"), "Saved.")
	s.False(s.sess.Store.Dirty())

	stored, err := s.repo.Load(s.ctx, s.sess.ID)
	s.Require().NoError(err)
	s.Len(stored.Participants, 3)

	s.Contains(s.exec("end"), "Combat ended and saved.")
	stored, err = s.repo.Load(s.ctx, s.sess.ID)
	s.Require().NoError(err)
	s.Equal(combat.StatusCompleted, stored.Status)
}

func (s *ConsoleSuite) TestHelpListsEveryCommand() {
	out := s.exec("help")
	for _, cmd := range console.BuiltinCommands() {
		s.Contains(out, cmd.Name)
	}
	s.Contains(out, "ROSTER")
}

func (s *ConsoleSuite) TestQuit() {
	quit, err := s.console.Execute(s.ctx, "quit")
	s.NoError(err)
	s.True(quit)
}

func (s *ConsoleSuite) TestRunLoop() {
	in := strings.NewReader("add Aria 30 16\nshow\nbogus\nquit\nshow\n")
	s.out.Reset()
	s.Require().NoError(s.console.Run(s.ctx, in))
	out := s.out.String()
	s.Equal(4, strings.Count(out, console.Prompt), "stops reading after quit")
	s.Contains(out, "Added Aria")
	s.Contains(out, `unknown command "bogus"`)
}

func TestConsole_SaveFailureIsReturned(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	repo := mocksnapshot.NewMockRepository(ctrl)
	snap := combat.Snapshot{ID: "c1", CampaignID: "k1", Status: combat.StatusActive, CurrentRound: 1, Participants: []combat.Participant{}}
	boom := errors.New("connection refused")
	repo.EXPECT().Load(gomock.Any(), "c1").Return(snap, nil)
	repo.EXPECT().Save(gomock.Any(), gomock.Any()).Return(boom)

	m, err := session.NewManager(session.Config{
		Repository: repo,
		Roller:     dice.NewLoggedRoller(maxSource{}, nil),
	})
	require.NoError(t, err)
	sess, err := m.Open(ctx, "c1")
	require.NoError(t, err)

	var out bytes.Buffer
	c, err := console.New(console.Config{Session: sess, Out: &out})
	require.NoError(t, err)

	_, err = c.Execute(ctx, "add Wolf 11 13")
	require.NoError(t, err)
	_, err = c.Execute(ctx, "save")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, out.String(), "error: ")
	assert.True(t, sess.Store.Dirty())
}

func TestNew_RequiresSessionAndOutput(t *testing.T) {
	_, err := console.New(console.Config{})
	assert.Error(t, err)
}
