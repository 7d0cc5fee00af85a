package roulette

import "errors"

// Domain-level error values returned by the round manager.
var (
	ErrRoundAlreadyOpen = errors.New("round already open")
	ErrRoundClosed      = errors.New("round closed")
	ErrRoundNotOpen     = errors.New("round not open")
	ErrUnknownRound     = errors.New("unknown round")
	ErrNoOpenRound      = errors.New("no open round")
	ErrInvalidStake     = errors.New("invalid stake")
	ErrInvalidChoice    = errors.New("invalid choice")
	ErrDuplicateBet     = errors.New("duplicate bet")
	ErrInvalidScope     = errors.New("invalid scope")
	ErrInvalidConfig    = errors.New("invalid roulette config")
)
