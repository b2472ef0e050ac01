package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Purchase struct {
	Pack  string    `json:"pack"`
	Price int       `json:"price"`
	At    time.Time `json:"at"`
}

// EmotionTally counts how often each emotion label was seen for a user.
type EmotionTally map[string]int

func (p *UserProfile) Emotions() (EmotionTally, error) {
	tally := EmotionTally{}
	if len(p.EmotionalProfile) == 0 {
		return tally, nil
	}
	if err := json.Unmarshal(p.EmotionalProfile, &tally); err != nil {
		return nil, fmt.Errorf("decode emotional profile: %w", err)
	}
	return tally, nil
}

func (p *UserProfile) Purchases() ([]Purchase, error) {
	var purchases []Purchase
	if len(p.PurchaseHistory) == 0 {
		return purchases, nil
	}
	if err := json.Unmarshal(p.PurchaseHistory, &purchases); err != nil {
		return nil, fmt.Errorf("decode purchase history: %w", err)
	}
	return purchases, nil
}

func loadProfile(ctx context.Context, store Store, userID string) (*UserProfile, error) {
	profile, err := store.GetProfile(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return &UserProfile{UserID: userID}, nil
	}
	return profile, err
}

// TallyEmotion adds one observation of label to the user's emotional profile.
func TallyEmotion(ctx context.Context, store Store, userID, label string) error {
	profile, err := loadProfile(ctx, store, userID)
	if err != nil {
		return err
	}

	tally, err := profile.Emotions()
	if err != nil {
		// Corrupt documents are replaced
		tally = EmotionTally{}
	}
	tally[label]++

	doc, err := json.Marshal(tally)
	if err != nil {
		return err
	}
	return store.UpdateProfile(ctx, userID, ProfileUpdate{EmotionalProfile: doc})
}

// AppendPurchase records a pack in the user's purchase history.
func AppendPurchase(ctx context.Context, store Store, userID string, purchase Purchase) error {
	profile, err := loadProfile(ctx, store, userID)
	if err != nil {
		return err
	}

	purchases, err := profile.Purchases()
	if err != nil {
		return err
	}
	purchases = append(purchases, purchase)

	doc, err := json.Marshal(purchases)
	if err != nil {
		return err
	}
	return store.UpdateProfile(ctx, userID, ProfileUpdate{PurchaseHistory: doc})
}
