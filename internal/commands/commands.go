package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/tbourn/go-group-bot/internal/bot"
	"github.com/tbourn/go-group-bot/internal/config"
	"github.com/tbourn/go-group-bot/internal/domain"
	"github.com/tbourn/go-group-bot/internal/services"
	"github.com/tbourn/go-group-bot/internal/transport"
)

// Command names as registered on the router.
const (
	NameFortune = "fortune"
	NameLottery = "lottery"
	NameReroll  = "reroll"
)

// Reply texts.
const (
	textFortuneNew      = "你今天的运势是：%s"
	textFortuneExisting = "你今天已经抽过运势了哦，是：%s"
	textFortuneFailed   = "抽运势时出错了，请稍后再试~"

	textLotteryNew      = "恭喜你抽到了：[%s]\n剩余重抽次数：%d"
	textLotteryExisting = "你今天已经抽过了哦！是 [%s]\n剩余重抽次数：%d"
	textLotteryEmpty    = "群里没有可以抽的人哦~"
	textLotteryFailed   = "抽老婆时出错了，请稍后再试~"

	textRerollNew      = "你重抽到了：[%s]\n剩余重抽次数：%d"
	textRerollRefused  = "不能重抽了，因为%s，你的老婆是%s"
	textRerollNoRecord = "你今天还没有抽过老婆哦，请先使用\"抽老婆\"命令"
	textRerollFailed   = "重抽时出错了，请稍后再试~"
)

var reasonText = map[services.RerollReason]string{
	services.ReasonExhausted:    "今天的重抽次数已经用完了",
	services.ReasonNoCandidates: "群里已经没有其他可以抽的人了",
}

// Roster looks up the members of a group.
type Roster interface {
	MemberIDs(ctx context.Context, groupID int64) ([]int64, error)
	Member(ctx context.Context, groupID, userID int64) (domain.Member, bool, error)
}

// Commands holds the dependencies of the chat commands.
type Commands struct {
	Fortune  *services.FortuneService
	Lottery  *services.LotteryService
	Roster   Roster
	Settings config.Settings
	Responder
}

// New returns commands replying through sender.
func New(fortune *services.FortuneService, lottery *services.LotteryService, roster Roster, sender transport.Sender, settings config.Settings) *Commands {
	return &Commands{
		Fortune:   fortune,
		Lottery:   lottery,
		Roster:    roster,
		Settings:  settings,
		Responder: Responder{Sender: sender},
	}
}

// Register adds the fortune, lottery and reroll commands to r using the
// aliases from Settings.
func (cm *Commands) Register(r *bot.Router) error {
	aliases := cm.Settings.Commands
	cmds := []bot.Command{
		{Name: NameFortune, Description: "抽取今日运势", Matcher: bot.Exact(aliases.Fortune...), Handler: groupOnly(cm.HandleFortune)},
		{Name: NameLottery, Description: "抽取今日老婆", Matcher: bot.Exact(aliases.Lottery...), Handler: groupOnly(cm.HandleLottery)},
		{Name: NameReroll, Description: "重新抽取老婆", Matcher: bot.Exact(aliases.Reroll...), Handler: groupOnly(cm.HandleReroll)},
	}
	for _, cmd := range cmds {
		if err := r.Register(cmd); err != nil {
			return fmt.Errorf("register %s: %w", cmd.Name, err)
		}
	}
	return nil
}

func groupOnly(h bot.HandlerFunc) bot.HandlerFunc {
	return func(c *bot.Context) error {
		if _, ok := c.GroupID(); !ok {
			return nil
		}
		return h(c)
	}
}

// apologize sends text and returns cause, joined with any send failure.
func (cm *Commands) apologize(c *bot.Context, text string, cause error) error {
	if err := cm.Reply(c, text, ""); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// HandleFortune draws (or recalls) the sender's fortune for today.
func (cm *Commands) HandleFortune(c *bot.Context) error {
	groupID, _ := c.GroupID()
	rec, drawn, err := cm.Fortune.Draw(c.Context(), c.SenderID(), groupID)
	if err != nil {
		return cm.apologize(c, textFortuneFailed, fmt.Errorf("fortune: %w", err))
	}

	text := fmt.Sprintf(textFortuneExisting, rec.FortuneType)
	if drawn {
		text = fmt.Sprintf(textFortuneNew, rec.FortuneType)
	}
	c.Logger().Info().Str("fortune", rec.FortuneType).Bool("new", drawn).Msg("fortune drawn")
	return cm.Reply(c, text, cm.Settings.FortuneImage(rec.FortuneType))
}

// HandleLottery draws (or recalls) the sender's lottery pick for today.
func (cm *Commands) HandleLottery(c *bot.Context) error {
	ctx := c.Context()
	groupID, _ := c.GroupID()

	ids, err := cm.Roster.MemberIDs(ctx, groupID)
	if err != nil {
		return cm.apologize(c, textLotteryFailed, fmt.Errorf("lottery roster: %w", err))
	}

	rec, drawn, err := cm.Lottery.Draw(ctx, c.SenderID(), groupID, ids)
	switch {
	case errors.Is(err, services.ErrNoCandidates):
		return cm.Reply(c, textLotteryEmpty, "")
	case err != nil:
		return cm.apologize(c, textLotteryFailed, fmt.Errorf("lottery: %w", err))
	}

	name := cm.displayName(c, groupID, rec.SelectedID)
	text := fmt.Sprintf(textLotteryExisting, name, rec.RemainingRerolls)
	if drawn {
		text = fmt.Sprintf(textLotteryNew, name, rec.RemainingRerolls)
	}
	c.Logger().Info().Int64("selected", rec.SelectedID).Bool("new", drawn).Msg("lottery drawn")
	return cm.Reply(c, text, cm.Settings.AvatarURL(rec.SelectedID))
}

// HandleReroll replaces the sender's lottery pick when rerolls remain.
func (cm *Commands) HandleReroll(c *bot.Context) error {
	ctx := c.Context()
	groupID, _ := c.GroupID()

	ids, err := cm.Roster.MemberIDs(ctx, groupID)
	if err != nil {
		return cm.apologize(c, textRerollFailed, fmt.Errorf("reroll roster: %w", err))
	}

	res, err := cm.Lottery.Reroll(ctx, c.SenderID(), groupID, ids)
	switch {
	case errors.Is(err, services.ErrNoRecord):
		return cm.Reply(c, textRerollNoRecord, "")
	case err != nil:
		return cm.apologize(c, textRerollFailed, fmt.Errorf("reroll: %w", err))
	}

	name := cm.displayName(c, groupID, res.Record.SelectedID)
	avatar := cm.Settings.AvatarURL(res.Record.SelectedID)
	if !res.Success {
		reason, ok := reasonText[res.Reason]
		if !ok {
			reason = string(res.Reason)
		}
		return cm.Reply(c, fmt.Sprintf(textRerollRefused, reason, name), avatar)
	}
	c.Logger().Info().Int64("selected", res.Record.SelectedID).Int("remaining", res.Record.RemainingRerolls).Msg("lottery rerolled")
	return cm.Reply(c, fmt.Sprintf(textRerollNew, name, res.Record.RemainingRerolls), avatar)
}

// PrivateReply answers every private message with text and halts the
// pipeline, so commands only run in groups.
func (cm *Commands) PrivateReply(priority int) bot.Middleware {
	return bot.Middleware{
		Name:     "private",
		Priority: priority,
		Condition: func(c *bot.Context) bool {
			_, group := c.GroupID()
			return !group
		},
		Handler: func(c *bot.Context) (bot.Step, error) {
			if cm.Settings.PrivateText == "" {
				return bot.Stop(), nil
			}
			return bot.Stop(), cm.Reply(c, cm.Settings.PrivateText, "")
		},
	}
}

// displayName returns the member's card or nickname, or the bare id when the
// member left or the lookup failed.
func (cm *Commands) displayName(c *bot.Context, groupID, userID int64) string {
	m, found, err := cm.Roster.Member(c.Context(), groupID, userID)
	if err != nil {
		c.Logger().Warn().Err(err).Int64("user_id", userID).Msg("member lookup failed")
	}
	if found {
		if n := m.DisplayName(); n != "" {
			return n
		}
	}
	return strconv.FormatInt(userID, 10)
}
