package config

type TokenConf struct {
	AccessTokenExpiryHour  int
	RefreshTokenExpiryHour int
	AccessTokenSecret      string
	RefreshTokenSecret     string
}

func NewTokenConf() *TokenConf {
	conf := GetConfig()
	return &TokenConf{
		AccessTokenExpiryHour:  1,
		RefreshTokenExpiryHour: 168,
		AccessTokenSecret:      conf.Auth.AccessTokenSecret,
		RefreshTokenSecret:     conf.Auth.RefreshTokenSecret,
	}
}
