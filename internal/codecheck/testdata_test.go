package codecheck

const cleanCounter = `#![no_std]
use soroban_sdk::{contract, contractimpl, symbol_short, Env, Symbol};

const COUNTER: Symbol = symbol_short!("COUNTER");

#[contract]
pub struct IncrementContract;

#[contractimpl]
impl IncrementContract {
    pub fn increment(env: Env) -> u32 {
        let mut count: u32 = env.storage().instance().get(&COUNTER).unwrap_or(0);
        count += 1;
        env.storage().instance().set(&COUNTER, &count);
        env.storage().instance().extend_ttl(50, 100);
        count
    }
}
`

const cleanStandardToken = `#![no_std]
use soroban_sdk::{contract, contractimpl, token::TokenInterface, Address, Env, MuxedAddress, String};

#[contract]
pub struct Token;

#[contractimpl]
impl TokenInterface for Token {
    fn allowance(e: Env, from: Address, spender: Address) -> i128 {
        read_allowance(&e, from, spender).amount
    }

    fn transfer(e: Env, from: Address, to: MuxedAddress, amount: i128) {
        from.require_auth();
        check_nonnegative_amount(amount);
        e.storage().instance().extend_ttl(INSTANCE_LIFETIME_THRESHOLD, INSTANCE_BUMP_AMOUNT);
        move_balance(&e, &from, &to.address(), amount);
    }

    fn decimals(e: Env) -> u32 {
        read_decimal(&e)
    }
}
`

const proxyToken = `#![no_std]
#[contract]
pub struct Token;

#[contractimpl]
impl TokenInterface for Token {
    fn balance(e: Env, id: Address) -> i128 {
        TokenInterface::balance(e, id)
    }

    fn transfer(e: Env, from: Address, to: Address, amount: i128) {
        // forward
        TokenInterface::transfer(e, from, to, amount)
    }
}
`

const unauthorizedTransfer = `#![no_std]
#[contract]
pub struct MyToken;

#[contractimpl]
impl MyToken {
    pub fn transfer(env: Env, from: Address, to: Address, amount: i128) {
        let balance = read_balance(&env, &from);
        write_balance(&env, &from, balance - amount);
        write_balance(&env, &to, amount);
    }
}
`
