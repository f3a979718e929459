package strategy

import (
	"fmt"
	"math"
)

// The tweet family trades the social feed alone. Each variant reads the
// per-timeframe TweetContext; without one they hold.

// symbolSentiment aggregates the signed sentiment for one symbol, applying a
// per-category weight multiplier. Returns the weighted average and the signal
// count.
func symbolSentiment(t *TweetContext, symbol string, weight func(TweetSignal) float64) (float64, int) {
	signals := t.SignalsFor(symbol)
	if len(signals) == 0 {
		return 0, 0
	}
	var sum, wsum float64
	for _, sig := range signals {
		w := 1.0
		if weight != nil {
			w = weight(sig)
		}
		sum += sig.Sentiment * w
		wsum += w
	}
	if wsum == 0 {
		return 0, len(signals)
	}
	return sum / wsum, len(signals)
}

// tweetExit closes a position whose aggregated sentiment flipped against it
func tweetExit(ctx *Context, s Strategy, weight func(TweetSignal) float64) (Action, bool) {
	for _, pos := range ctx.Portfolio.Positions {
		sentiment, count := symbolSentiment(ctx.Tweets, pos.Symbol, weight)
		if count == 0 {
			continue
		}
		flipped := (pos.Direction == "long" && sentiment < -0.2) ||
			(pos.Direction == "short" && sentiment > 0.2)
		if flipped {
			act := Action{Type: ActionClose, Symbol: pos.Symbol, Confidence: 0.7}
			act.Reasoning = s.GenerateReasoning(ctx, act)
			return act, true
		}
	}
	return Action{}, false
}

// TweetMomentum rides the feed: strong positive chatter on a heavily
// mentioned symbol is bought, strong negative chatter sold.
type TweetMomentum struct{}

func (s *TweetMomentum) Name() string { return "tweet_momentum" }

func (s *TweetMomentum) Decide(ctx *Context) Action {
	if ctx.Tweets == nil {
		return Hold("no tweet context available")
	}
	if act, ok := tweetExit(ctx, s, nil); ok {
		return act
	}
	if !ctx.Portfolio.CanOpen() {
		return Hold("position cap reached or no cash available")
	}

	for _, symbol := range ctx.Tweets.TopSymbols {
		if _, open := ctx.Portfolio.HasPosition(symbol); open {
			continue
		}
		sentiment, count := symbolSentiment(ctx.Tweets, symbol, nil)
		if count < 2 {
			continue
		}
		var dir ActionType
		switch {
		case sentiment >= 0.4:
			dir = ActionOpenLong
		case sentiment <= -0.4:
			dir = ActionOpenShort
		default:
			continue
		}
		act := Action{
			Type:          dir,
			Symbol:        symbol,
			SizePct:       0.10,
			StopLossPct:   0.05,
			TakeProfitPct: 0.08,
			Confidence:    math.Min(math.Abs(sentiment), 1),
		}
		act.Reasoning = s.GenerateReasoning(ctx, act)
		return act
	}
	return Hold("no symbol with strong enough chatter")
}

func (s *TweetMomentum) GenerateReasoning(ctx *Context, act Action) string {
	switch act.Type {
	case ActionClose:
		return fmt.Sprintf("Chatter on %s flipped against the position.", act.Symbol)
	case ActionOpenLong:
		return fmt.Sprintf("Riding positive chatter on %s: heavily mentioned with aggregated sentiment above 0.4. Sizing 10%% with 5%% stop, 8%% target.", act.Symbol)
	case ActionOpenShort:
		return fmt.Sprintf("Riding negative chatter on %s: heavily mentioned with aggregated sentiment below -0.4. Sizing 10%% with 5%% stop, 8%% target.", act.Symbol)
	}
	return "Feed sentiment too weak or too thin to ride."
}

// TweetContrarian fades sentiment extremes: a euphoric feed gets sold, a
// capitulating feed gets bought.
type TweetContrarian struct{}

func (s *TweetContrarian) Name() string { return "tweet_contrarian" }

func (s *TweetContrarian) Decide(ctx *Context) Action {
	if ctx.Tweets == nil {
		return Hold("no tweet context available")
	}

	// Exit once the extreme has cooled off.
	for _, pos := range ctx.Portfolio.Positions {
		if math.Abs(ctx.Tweets.AvgSentiment) < 0.3 {
			act := Action{Type: ActionClose, Symbol: pos.Symbol, Confidence: 0.7}
			act.Reasoning = s.GenerateReasoning(ctx, act)
			return act
		}
	}

	if !ctx.Portfolio.CanOpen() {
		return Hold("position cap reached or no cash available")
	}

	var dir ActionType
	switch {
	case ctx.Tweets.AvgSentiment >= 0.7 && ctx.Tweets.BullishCount >= 5:
		dir = ActionOpenShort // euphoria
	case ctx.Tweets.AvgSentiment <= -0.7 && ctx.Tweets.BearishCount >= 5:
		dir = ActionOpenLong // capitulation
	default:
		return Hold("feed sentiment not extreme enough to fade")
	}

	for _, symbol := range ctx.Tweets.TopSymbols {
		if _, open := ctx.Portfolio.HasPosition(symbol); open {
			continue
		}
		act := Action{
			Type:          dir,
			Symbol:        symbol,
			SizePct:       0.08,
			StopLossPct:   0.04,
			TakeProfitPct: 0.06,
			Confidence:    math.Min(math.Abs(ctx.Tweets.AvgSentiment), 1),
		}
		act.Reasoning = s.GenerateReasoning(ctx, act)
		return act
	}
	return Hold("no unencumbered symbol to fade")
}

func (s *TweetContrarian) GenerateReasoning(ctx *Context, act Action) string {
	switch act.Type {
	case ActionClose:
		return fmt.Sprintf("Sentiment extreme behind the %s fade has cooled off.", act.Symbol)
	case ActionOpenLong:
		return fmt.Sprintf("Fading capitulation: feed sentiment at %.2f with heavy bearish count, buying %s against the crowd. Sizing 8%% with 4%% stop, 6%% target.", ctx.Tweets.AvgSentiment, act.Symbol)
	case ActionOpenShort:
		return fmt.Sprintf("Fading euphoria: feed sentiment at %.2f with heavy bullish count, selling %s against the crowd. Sizing 8%% with 4%% stop, 6%% target.", ctx.Tweets.AvgSentiment, act.Symbol)
	}
	return "Feed sentiment not extreme enough to fade."
}

// TweetNarrative waits for a story to form: at least three credible signals
// in the same category pointing the same way on one symbol.
type TweetNarrative struct{}

func (s *TweetNarrative) Name() string { return "tweet_narrative" }

func (s *TweetNarrative) Decide(ctx *Context) Action {
	if ctx.Tweets == nil {
		return Hold("no tweet context available")
	}
	if act, ok := tweetExit(ctx, s, nil); ok {
		return act
	}
	if !ctx.Portfolio.CanOpen() {
		return Hold("position cap reached or no cash available")
	}

	// symbol -> category -> signed signal count and sentiment sum
	type bucket struct {
		count int
		sum   float64
	}
	buckets := make(map[string]map[string]*bucket)
	for _, sig := range ctx.Tweets.Signals {
		if !sig.Credible {
			continue
		}
		if buckets[sig.Symbol] == nil {
			buckets[sig.Symbol] = make(map[string]*bucket)
		}
		b := buckets[sig.Symbol][sig.Category]
		if b == nil {
			b = &bucket{}
			buckets[sig.Symbol][sig.Category] = b
		}
		b.count++
		b.sum += sig.Sentiment
	}

	for symbol, categories := range buckets {
		if _, open := ctx.Portfolio.HasPosition(symbol); open {
			continue
		}
		for _, b := range categories {
			if b.count < 3 {
				continue
			}
			avg := b.sum / float64(b.count)
			var dir ActionType
			switch {
			case avg >= 0.3:
				dir = ActionOpenLong
			case avg <= -0.3:
				dir = ActionOpenShort
			default:
				continue
			}
			act := Action{
				Type:          dir,
				Symbol:        symbol,
				SizePct:       0.12,
				StopLossPct:   0.05,
				TakeProfitPct: 0.10,
				Confidence:    math.Min(math.Abs(avg)+0.2, 1),
			}
			act.Reasoning = s.GenerateReasoning(ctx, act)
			return act
		}
	}
	return Hold("no narrative with three credible signals")
}

func (s *TweetNarrative) GenerateReasoning(ctx *Context, act Action) string {
	switch act.Type {
	case ActionClose:
		return fmt.Sprintf("Narrative around %s turned against the position.", act.Symbol)
	case ActionOpenLong, ActionOpenShort:
		return fmt.Sprintf("Narrative forming on %s: three or more credible signals in one category pointing the same way. Sizing 12%% with 5%% stop, 10%% target.", act.Symbol)
	}
	return "No narrative has gathered three credible voices yet."
}

// TweetInsider leans on provenance: insider and founder signals count double
// when aggregating sentiment.
type TweetInsider struct{}

func (s *TweetInsider) Name() string { return "tweet_insider" }

// insiderWeight doubles insider and founder signals
func insiderWeight(sig TweetSignal) float64 {
	if sig.Category == "insider" || sig.Category == "founder" {
		return 2.0
	}
	return 1.0
}

func (s *TweetInsider) Decide(ctx *Context) Action {
	if ctx.Tweets == nil {
		return Hold("no tweet context available")
	}
	if act, ok := tweetExit(ctx, s, insiderWeight); ok {
		return act
	}
	if !ctx.Portfolio.CanOpen() {
		return Hold("position cap reached or no cash available")
	}

	for _, symbol := range ctx.Tweets.TopSymbols {
		if _, open := ctx.Portfolio.HasPosition(symbol); open {
			continue
		}
		hasInsider := false
		for _, sig := range ctx.Tweets.SignalsFor(symbol) {
			if insiderWeight(sig) > 1 {
				hasInsider = true
				break
			}
		}
		if !hasInsider {
			continue
		}
		sentiment, count := symbolSentiment(ctx.Tweets, symbol, insiderWeight)
		if count < 2 {
			continue
		}
		var dir ActionType
		switch {
		case sentiment >= 0.5:
			dir = ActionOpenLong
		case sentiment <= -0.5:
			dir = ActionOpenShort
		default:
			continue
		}
		act := Action{
			Type:          dir,
			Symbol:        symbol,
			SizePct:       0.10,
			StopLossPct:   0.04,
			TakeProfitPct: 0.08,
			Confidence:    math.Min(math.Abs(sentiment), 1),
		}
		act.Reasoning = s.GenerateReasoning(ctx, act)
		return act
	}
	return Hold("no insider-weighted signal strong enough")
}

func (s *TweetInsider) GenerateReasoning(ctx *Context, act Action) string {
	switch act.Type {
	case ActionClose:
		return fmt.Sprintf("Insider-weighted sentiment on %s flipped against the position.", act.Symbol)
	case ActionOpenLong:
		return fmt.Sprintf("Insider-weighted long on %s: insider and founder voices count double and push sentiment past 0.5. Sizing 10%% with 4%% stop, 8%% target.", act.Symbol)
	case ActionOpenShort:
		return fmt.Sprintf("Insider-weighted short on %s: weighted sentiment below -0.5. Sizing 10%% with 4%% stop, 8%% target.", act.Symbol)
	}
	return "No insider-backed signal cleared the bar."
}
