package combat

// Template ids recognized on the battle screen.
const (
	btnAttack             = "attack"
	btnCancel             = "cancel"
	btnCombatCancel       = "combat_cancel"
	btnBack               = "back"
	btnHomeBack           = "home_back"
	btnReload             = "reload"
	btnNext               = "next"
	btnOK                 = "ok"
	btnUse                = "use"
	btnHeal               = "heal"
	btnSummon             = "summon"
	btnSetTarget          = "set_target"
	btnFullAuto           = "full_auto"
	btnFullAutoEnabled    = "full_auto_enabled"
	btnSemiAuto           = "semi_auto"
	btnSemiAutoEnabled    = "semi_auto_enabled"
	btnQuickSummon1       = "quick_summon1"
	btnQuickSummon2       = "quick_summon2"
	btnQuickSummonWait    = "quick_summon_not_ready"
	btnRequestBackup      = "request_backup"
	btnRequestBackupTweet = "request_backup_tweet"
	btnRetreatConfirm     = "retreat_confirmation"
	btnSalute             = "salute"
	btnLeave              = "leave"
	btnWipeIndicator      = "party_wipe_indicator"
	btnDialogLyria        = "dialog_lyria"
	btnDialogVyrn         = "dialog_vyrn"
	btnSelectCharacter    = "select_a_character"
	btnArcarumStageEffect = "arcarum_stage_effect_active"

	scrNoLoot             = "no_loot"
	scrBattleConcluded    = "battle_concluded"
	scrExpGained          = "exp_gained"
	scrLootCollected      = "loot_collected"
	scrSaluteParticipants = "salute_participants"
	scrSummonDetails      = "summon_details"
	scrSkillUnusable      = "skill_unusable"
	scrUseItem            = "use_item"
	scrTapItemToUse       = "tap_the_item_to_use"
	scrBackupSuccess      = "request_backup_success"
	scrBackupTweetSuccess = "request_backup_tweet_success"
)
